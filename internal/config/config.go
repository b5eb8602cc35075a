package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPListenAddr string
	LogLevel       string
	CORSOrigins    []string
	DevMode        bool

	DatabaseURL string
	AutoMigrate bool
	RedisURL    string

	JWTSecret      string
	JWTIssuer      string
	AdminAccountID string

	CpanelURL      string
	CpanelUser     string
	CpanelAPIToken string

	MailDomain     string
	MailServer     string
	WebmailURL     string
	MailVerifyMode string

	StatsRefreshSchedule string
	LoginRatePerSecond   float64
	LoginRateBurst       int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	origins := getEnv("CORS_ORIGINS", "http://localhost:3000")
	var corsList []string
	for _, o := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			corsList = append(corsList, trimmed)
		}
	}

	domain := strings.ToLower(strings.TrimSpace(getEnv("MAIL_DOMAIN", "")))

	rate, err := strconv.ParseFloat(getEnv("LOGIN_RATE_PER_SECOND", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("parse LOGIN_RATE_PER_SECOND: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("LOGIN_RATE_BURST", "5"))
	if err != nil {
		return nil, fmt.Errorf("parse LOGIN_RATE_BURST: %w", err)
	}

	cfg := &Config{
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CORSOrigins:    corsList,
		DevMode:        getEnv("DEV_MODE", "") == "true",

		DatabaseURL: getEnv("DATABASE_URL", ""),
		AutoMigrate: getEnv("AUTO_MIGRATE", "true") == "true",
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "mailpanel-api"),
		AdminAccountID: getEnv("ADMIN_ACCOUNT_ID", ""),

		CpanelURL:      strings.TrimRight(getEnv("CPANEL_URL", "https://localhost:2083"), "/"),
		CpanelUser:     getEnv("CPANEL_USER", ""),
		CpanelAPIToken: getEnv("CPANEL_API_TOKEN", ""),

		MailDomain:     domain,
		MailServer:     getEnv("MAIL_SERVER", "mail."+domain),
		WebmailURL:     strings.TrimRight(getEnv("WEBMAIL_URL", "https://webmail."+domain), "/"),
		MailVerifyMode: getEnv("MAIL_VERIFY_MODE", "simulated"),

		StatsRefreshSchedule: getEnv("STATS_REFRESH_SCHEDULE", "@every 5m"),
		LoginRatePerSecond:   rate,
		LoginRateBurst:       burst,
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.MailDomain == "" {
		missing = append(missing, "MAIL_DOMAIN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.MailDomain == "*" {
		return fmt.Errorf("MAIL_DOMAIN must name a single domain")
	}
	switch c.MailVerifyMode {
	case "simulated", "imap":
	default:
		return fmt.Errorf("MAIL_VERIFY_MODE must be simulated or imap, got %q", c.MailVerifyMode)
	}
	return nil
}

// CpanelConfigured reports whether panel credentials are present.
func (c *Config) CpanelConfigured() bool {
	return c.CpanelUser != "" && c.CpanelAPIToken != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
