package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/animxo/mailpanel/internal/model"
)

// Usage counter kinds.
const (
	UsageSent     = "sent"
	UsageReceived = "received"
	UsageLogins   = "logins"
)

func usageKey(accountID, mailboxID string) string {
	return "usage:" + accountID + ":" + mailboxID
}

// UsageService counts per-mailbox activity in redis hashes.
type UsageService struct {
	rdb redis.UniversalClient
}

func NewUsageService(rdb redis.UniversalClient) *UsageService {
	return &UsageService{rdb: rdb}
}

// Track increments one counter.
func (s *UsageService) Track(ctx context.Context, accountID, mailboxID, kind string) error {
	switch kind {
	case UsageSent, UsageReceived, UsageLogins:
	default:
		return invalidf("unknown usage kind %q", kind)
	}
	if err := s.rdb.HIncrBy(ctx, usageKey(accountID, mailboxID), kind, 1).Err(); err != nil {
		return fmt.Errorf("track %s usage: %w", kind, err)
	}
	return nil
}

// Get returns the counters; an untracked mailbox reads as zeros.
func (s *UsageService) Get(ctx context.Context, accountID, mailboxID string) (*model.MailboxUsage, error) {
	vals, err := s.rdb.HGetAll(ctx, usageKey(accountID, mailboxID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}

	parse := func(k string) int64 {
		n, _ := strconv.ParseInt(vals[k], 10, 64)
		return n
	}
	return &model.MailboxUsage{
		Sent:     parse(UsageSent),
		Received: parse(UsageReceived),
		Logins:   parse(UsageLogins),
	}, nil
}

// Clear drops the counters of a deleted mailbox.
func (s *UsageService) Clear(ctx context.Context, accountID, mailboxID string) error {
	if err := s.rdb.Del(ctx, usageKey(accountID, mailboxID)).Err(); err != nil {
		return fmt.Errorf("clear usage: %w", err)
	}
	return nil
}
