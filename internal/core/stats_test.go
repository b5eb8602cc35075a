package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/animxo/mailpanel/internal/model"
)

func ago(now time.Time, d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	records := []LoginRecord{
		{LastLogin: ago(now, time.Hour), Mailboxes: 2},
		{LastLogin: ago(now, 30*day), Mailboxes: 1},
		{LastLogin: ago(now, 30*day+time.Minute), Mailboxes: 0},
		{LastLogin: nil, Mailboxes: 3},
	}

	stats := ComputeStats(records, now)
	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 2, stats.ActiveUsers)
	assert.Equal(t, 2, stats.InactiveUsers)
	assert.Equal(t, 6, stats.TotalEmailAccounts)
	assert.Equal(t, now, stats.LastUpdated)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil, time.Now())
	assert.Zero(t, stats.TotalUsers)
	assert.Zero(t, stats.ActiveUsers)
	assert.Zero(t, stats.InactiveUsers)
}

func statsRows(now time.Time) *mockRows {
	return newMockRows(
		func(dest ...any) error {
			*(dest[0].(**time.Time)) = ago(now, time.Hour)
			*(dest[1].(*int)) = 2
			return nil
		},
		func(dest ...any) error {
			*(dest[0].(**time.Time)) = nil
			*(dest[1].(*int)) = 1
			return nil
		},
	)
}

func TestStatsService_GetComputesAndCaches(t *testing.T) {
	db := &mockDB{}
	rdb, mr := newTestRedis(t)
	svc := NewStatsService(db, rdb)
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	db.On("Query", ctx, sqlLike("jsonb_array_length"), mock.Anything).Return(statsRows(now), nil).Once()

	stats, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.ActiveUsers)
	assert.Equal(t, 1, stats.InactiveUsers)
	assert.Equal(t, 3, stats.TotalEmailAccounts)

	raw, err := mr.Get(statsKey)
	require.NoError(t, err)
	var cached model.SystemStats
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, 2, cached.TotalUsers)

	// Second read is served from the cache.
	again, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalUsers, again.TotalUsers)
	db.AssertNumberOfCalls(t, "Query", 1)
}

func TestStatsService_Refresh(t *testing.T) {
	db := &mockDB{}
	rdb, _ := newTestRedis(t)
	svc := NewStatsService(db, rdb)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(newEmptyMockRows(), nil)

	stats, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalUsers)
	db.AssertExpectations(t)
}
