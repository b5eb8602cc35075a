package webmail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidAddress     = errors.New("Invalid email format")
	ErrInvalidCredentials = errors.New("Invalid email credentials")
)

var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidAddress reports whether s looks like local@domain.tld.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// Verifier checks mailbox credentials. It returns ErrInvalidAddress or
// ErrInvalidCredentials for rejected input and other errors for transport
// failures.
type Verifier interface {
	Verify(ctx context.Context, address, password string) error
}

// SimulatedVerifier accepts any well-formed address with a password.
type SimulatedVerifier struct{}

func (SimulatedVerifier) Verify(_ context.Context, address, password string) error {
	if !ValidAddress(address) {
		return ErrInvalidAddress
	}
	if password == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// IMAPVerifier logs in to the mail server over IMAP and logs out again.
type IMAPVerifier struct {
	Addr      string
	TLSConfig *tls.Config
	Timeout   time.Duration

	dial func(d *net.Dialer, addr string, cfg *tls.Config) (*client.Client, error)
}

// NewIMAPVerifier targets server on the implicit-TLS IMAP port.
func NewIMAPVerifier(server string) *IMAPVerifier {
	return &IMAPVerifier{
		Addr:      net.JoinHostPort(server, strconv.Itoa(IMAPPort)),
		TLSConfig: &tls.Config{ServerName: server, MinVersion: tls.VersionTLS12},
		Timeout:   15 * time.Second,
		dial: func(d *net.Dialer, addr string, cfg *tls.Config) (*client.Client, error) {
			return client.DialWithDialerTLS(d, addr, cfg)
		},
	}
}

func (v *IMAPVerifier) Verify(ctx context.Context, address, password string) error {
	if !ValidAddress(address) {
		return ErrInvalidAddress
	}

	c, err := v.dial(&net.Dialer{Timeout: v.Timeout}, v.Addr, v.TLSConfig)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", v.Addr, err)
	}

	stop := context.AfterFunc(ctx, func() { c.Terminate() })
	defer stop()

	if err := c.Login(address, password); err != nil {
		c.Terminate()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zerolog.Ctx(ctx).Debug().Err(err).Str("address", address).Msg("imap login rejected")
		return ErrInvalidCredentials
	}

	if err := c.Logout(); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("imap logout")
	}
	return nil
}
