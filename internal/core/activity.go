package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/model"
	"github.com/animxo/mailpanel/internal/platform"
)

const DefaultActivityLimit = 10

func activityKey(accountID string) string { return "activities:" + accountID }

// ActivityService keeps the per-account activity log, newest first.
type ActivityService struct {
	rdb  redis.UniversalClient
	feed *Feed
	now  func() time.Time
}

func NewActivityService(rdb redis.UniversalClient, feed *Feed) *ActivityService {
	return &ActivityService{rdb: rdb, feed: feed, now: time.Now}
}

// Log appends an event to the account's log and notifies subscribers.
func (s *ActivityService) Log(ctx context.Context, accountID, action string, data map[string]string) (*model.ActivityEvent, error) {
	if accountID == "" {
		return nil, invalidf("account id is required")
	}
	ev := &model.ActivityEvent{
		ID:        platform.NewName("evt_"),
		Action:    action,
		Data:      data,
		Timestamp: s.now().UnixMilli(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode activity: %w", err)
	}

	if err := s.rdb.LPush(ctx, activityKey(accountID), b).Err(); err != nil {
		return nil, fmt.Errorf("log activity for %s: %w", accountID, err)
	}

	if err := s.feed.Notify(ctx, activityChannel(accountID)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("account_id", accountID).Msg("activity notify failed")
	}
	return ev, nil
}

// Recent returns up to limit events, newest first. A non-positive limit
// means DefaultActivityLimit.
func (s *ActivityService) Recent(ctx context.Context, accountID string, limit int) ([]model.ActivityEvent, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	raw, err := s.rdb.LRange(ctx, activityKey(accountID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read activity for %s: %w", accountID, err)
	}

	events := make([]model.ActivityEvent, 0, len(raw))
	for _, r := range raw {
		var ev model.ActivityEvent
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("account_id", accountID).Msg("skipping malformed activity entry")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Subscribe delivers the recent events now and again after every change.
func (s *ActivityService) Subscribe(ctx context.Context, accountID string, limit int, fn func([]model.ActivityEvent)) (*Subscription, error) {
	return s.feed.Watch(ctx, func(ctx context.Context) error {
		events, err := s.Recent(ctx, accountID, limit)
		if err != nil {
			return err
		}
		fn(events)
		return nil
	}, activityChannel(accountID))
}
