package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const accountsChannel = "accounts:changed"

func accountChannel(id string) string { return "account:" + id + ":changed" }

func activityChannel(accountID string) string { return "activity:" + accountID + ":changed" }

// Feed is a change-notification bus over redis pub/sub. Messages carry no
// payload; subscribers re-read the current state on each notification.
type Feed struct {
	rdb redis.UniversalClient
}

func NewFeed(rdb redis.UniversalClient) *Feed {
	return &Feed{rdb: rdb}
}

// Notify publishes a change on each channel.
func (f *Feed) Notify(ctx context.Context, channels ...string) error {
	for _, ch := range channels {
		if err := f.rdb.Publish(ctx, ch, "changed").Err(); err != nil {
			return fmt.Errorf("publish %s: %w", ch, err)
		}
	}
	return nil
}

// Watch subscribes to channels, runs refresh once before returning, and again
// on every notification until the subscription is closed or ctx ends.
// Notifications on one subscription are handled in order.
func (f *Feed) Watch(ctx context.Context, refresh func(context.Context) error, channels ...string) (*Subscription, error) {
	ps := f.rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{ps: ps, cancel: cancel, done: make(chan struct{})}

	if err := refresh(ctx); err != nil {
		sub.Close()
		close(sub.done)
		return nil, err
	}

	go sub.run(ctx, refresh)
	return sub, nil
}

// Subscription is a live Watch registration.
type Subscription struct {
	ps     *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}

	once sync.Once
	err  error
}

func (s *Subscription) run(ctx context.Context, refresh func(context.Context) error) {
	defer close(s.done)
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := refresh(ctx); err != nil && ctx.Err() == nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("subscription refresh failed")
			}
		}
	}
}

// Close stops delivery. It is safe to call more than once and from inside
// the refresh callback.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.ps.Close()
	})
	return s.err
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
