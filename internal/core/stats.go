package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/animxo/mailpanel/internal/model"
)

const (
	statsKey = "system_stats"

	// ActiveWindow is how recently an account must have signed in to count
	// as active.
	ActiveWindow = 30 * 24 * time.Hour
)

// LoginRecord is the per-account input to ComputeStats.
type LoginRecord struct {
	LastLogin *time.Time
	Mailboxes int
}

// ComputeStats aggregates records. An account without a recorded sign-in is
// inactive.
func ComputeStats(records []LoginRecord, now time.Time) model.SystemStats {
	stats := model.SystemStats{TotalUsers: len(records), LastUpdated: now}
	for _, r := range records {
		stats.TotalEmailAccounts += r.Mailboxes
		if r.LastLogin != nil && now.Sub(*r.LastLogin) <= ActiveWindow {
			stats.ActiveUsers++
		}
	}
	stats.InactiveUsers = stats.TotalUsers - stats.ActiveUsers
	return stats
}

// StatsService computes system-wide counts with a full scan and caches the
// result in redis.
type StatsService struct {
	db  DB
	rdb redis.UniversalClient
	now func() time.Time
}

func NewStatsService(db DB, rdb redis.UniversalClient) *StatsService {
	return &StatsService{db: db, rdb: rdb, now: time.Now}
}

// Compute scans every account.
func (s *StatsService) Compute(ctx context.Context) (*model.SystemStats, error) {
	rows, err := s.db.Query(ctx, `SELECT last_login, jsonb_array_length(mailboxes) FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("scan accounts for stats: %w", err)
	}
	defer rows.Close()

	var records []LoginRecord
	for rows.Next() {
		var r LoginRecord
		if err := rows.Scan(&r.LastLogin, &r.Mailboxes); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}

	stats := ComputeStats(records, s.now())
	return &stats, nil
}

// Refresh recomputes the stats and stores them.
func (s *StatsService) Refresh(ctx context.Context) (*model.SystemStats, error) {
	stats, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("encode stats: %w", err)
	}
	if err := s.rdb.Set(ctx, statsKey, b, 0).Err(); err != nil {
		return nil, fmt.Errorf("store stats: %w", err)
	}
	return stats, nil
}

// Get returns the stored stats, refreshing them when none are stored yet.
func (s *StatsService) Get(ctx context.Context) (*model.SystemStats, error) {
	b, err := s.rdb.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.Refresh(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	var stats model.SystemStats
	if err := json.Unmarshal(b, &stats); err != nil {
		return s.Refresh(ctx)
	}
	return &stats, nil
}
