package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"

	"github.com/animxo/mailpanel/internal/model"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

// sqlLike matches a query containing fragment.
func sqlLike(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

// jsonArg decodes the JSON document passed as args[i].
func jsonArg(args []any, i int, v any) bool {
	if len(args) <= i {
		return false
	}
	raw, ok := args[i].([]byte)
	return ok && json.Unmarshal(raw, v) == nil
}

// accountScan fills the accountColumns destinations.
func accountScan(a model.Account, mailboxes string) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = a.ID
		*(dest[1].(*string)) = a.Email
		*(dest[2].(*string)) = a.DisplayName
		*(dest[3].(*bool)) = a.IsAdmin
		*(dest[4].(*time.Time)) = a.CreatedAt
		*(dest[5].(*time.Time)) = a.UpdatedAt
		*(dest[6].(**time.Time)) = a.LastLogin
		*(dest[7].(**time.Time)) = a.RememberMeExpiresAt
		*(dest[8].(*[]byte)) = []byte(mailboxes)
		return nil
	}
}

func testAccount(id string) model.Account {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return model.Account{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: id,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
