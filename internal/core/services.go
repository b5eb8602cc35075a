package core

import (
	"github.com/go-redis/redis/v8"

	"github.com/animxo/mailpanel/internal/webmail"
)

type Config struct {
	Auth    AuthConfig
	Mailbox MailboxConfig
}

type Services struct {
	Feed     *Feed
	Account  *AccountService
	Activity *ActivityService
	Auth     *AuthService
	Mailbox  *MailboxService
	Stats    *StatsService
	Usage    *UsageService
}

func NewServices(db DB, rdb redis.UniversalClient, panel Panel, verifier webmail.Verifier, cfg Config) *Services {
	feed := NewFeed(rdb)
	accounts := NewAccountService(db, feed, cfg.Auth.AdminID)
	activity := NewActivityService(rdb, feed)
	usage := NewUsageService(rdb)

	return &Services{
		Feed:     feed,
		Account:  accounts,
		Activity: activity,
		Auth:     NewAuthService(db, rdb, accounts, activity, cfg.Auth),
		Mailbox:  NewMailboxService(panel, accounts, activity, usage, verifier, cfg.Mailbox),
		Stats:    NewStatsService(db, rdb),
		Usage:    usage,
	}
}
