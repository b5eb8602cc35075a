package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/model"
	"github.com/animxo/mailpanel/internal/platform"
)

const (
	// RememberTTL is the session lifetime with "remember me".
	RememberTTL = 30 * 24 * time.Hour
	// SessionTTL is the session lifetime without it.
	SessionTTL = 24 * time.Hour

	minPasswordLen = 8
)

var errBadCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

func revokedKey(tokenID string) string { return "revoked:" + tokenID }

type AuthConfig struct {
	Secret  string
	Issuer  string
	AdminID string
}

// AuthService signs users in against the credentials table and issues HS256
// session tokens.
type AuthService struct {
	db       DB
	rdb      redis.UniversalClient
	accounts *AccountService
	activity *ActivityService
	cfg      AuthConfig
	now      func() time.Time
}

func NewAuthService(db DB, rdb redis.UniversalClient, accounts *AccountService, activity *ActivityService, cfg AuthConfig) *AuthService {
	return &AuthService{db: db, rdb: rdb, accounts: accounts, activity: activity, cfg: cfg, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates credentials and a profile.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string, admin bool) (*model.Account, error) {
	email = normalizeEmail(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return nil, invalidf("invalid email address %q", email)
	}
	if len(password) < minPasswordLen {
		return nil, invalidf("password must be at least %d characters", minPasswordLen)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	id := platform.NewID()
	_, err = s.db.Exec(ctx,
		`INSERT INTO credentials (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		id, email, hash, s.now().UTC())
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("register %s: %w", email, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert credentials: %w", err)
	}

	if displayName == "" {
		displayName = local
	}
	now := s.now().UTC()
	a := &model.Account{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		IsAdmin:     admin || id == s.cfg.AdminID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Mailboxes:   []model.Mailbox{},
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SignIn drives a session from SignedOut through Authenticating to SignedIn.
// On failure the returned session is SignedOut again and carries the reason.
func (s *AuthService) SignIn(ctx context.Context, email, password string, remember bool) (*model.Session, error) {
	sess := model.NewSession(remember)
	if err := sess.Begin(); err != nil {
		return nil, err
	}

	account, token, exp, err := s.authenticate(ctx, normalizeEmail(email), password, remember)
	if err != nil {
		_ = sess.Fail(err)
		return sess, err
	}
	if err := sess.Succeed(account, token, exp); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *AuthService) authenticate(ctx context.Context, email, password string, remember bool) (*model.Account, string, time.Time, error) {
	var id, hash string
	err := s.db.QueryRow(ctx,
		`SELECT id, password_hash FROM credentials WHERE email = $1`, email,
	).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, errBadCredentials
	}
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("lookup credentials: %w", err)
	}
	if !VerifyPassword(password, hash) {
		return nil, "", time.Time{}, errBadCredentials
	}

	now := s.now().UTC()
	account, err := s.accounts.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		account, err = s.synthesizeProfile(ctx, id, email, now)
	}
	if err != nil {
		return nil, "", time.Time{}, err
	}

	ttl := SessionTTL
	var rememberUntil *time.Time
	if remember {
		ttl = RememberTTL
		until := now.Add(RememberTTL)
		rememberUntil = &until
	}
	exp := now.Add(ttl)

	if err := s.accounts.TouchLastLogin(ctx, id, now, rememberUntil); err != nil {
		return nil, "", time.Time{}, err
	}
	account.LastLogin = &now
	account.RememberMeExpiresAt = rememberUntil

	token, err := s.issueToken(account, remember, now, exp)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	if _, err := s.activity.Log(ctx, id, model.ActivityLogin, map[string]string{"email": email}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("account_id", id).Msg("login activity failed")
	}
	return account, token, exp, nil
}

// synthesizeProfile creates the profile of an account signing in for the
// first time. The display name is the email local part.
func (s *AuthService) synthesizeProfile(ctx context.Context, id, email string, now time.Time) (*model.Account, error) {
	local, _, _ := strings.Cut(email, "@")
	a := &model.Account{
		ID:          id,
		Email:       email,
		DisplayName: local,
		IsAdmin:     s.cfg.AdminID != "" && id == s.cfg.AdminID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Mailboxes:   []model.Mailbox{},
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("account_id", id).Msg("profile created on first sign-in")
	return a, nil
}

func (s *AuthService) issueToken(a *model.Account, remember bool, now, exp time.Time) (string, error) {
	claims := model.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        platform.NewID(),
			Subject:   a.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:    a.Email,
		Admin:    s.accounts.IsAdmin(a),
		Remember: remember,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer and expiry, and rejects revoked
// tokens.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*model.Claims, error) {
	claims := &model.Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return []byte(s.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: incomplete token", ErrUnauthorized)
	}

	n, err := s.rdb.Exists(ctx, revokedKey(claims.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthorized)
	}
	return claims, nil
}

// SignOut revokes the token until it would have expired anyway and returns
// the ended session.
func (s *AuthService) SignOut(ctx context.Context, claims *model.Claims) (*model.Session, error) {
	if claims == nil {
		return model.NewSession(false), nil
	}
	sess := model.SessionFromClaims(claims)
	if ttl := sess.ExpiresAt.Sub(s.now()); claims.ExpiresAt != nil && ttl > 0 {
		if err := s.rdb.Set(ctx, revokedKey(claims.ID), claims.Subject, ttl).Err(); err != nil {
			return nil, fmt.Errorf("revoke token: %w", err)
		}
	}
	if err := sess.End(); err != nil {
		return nil, err
	}
	return sess, nil
}
