package cpanel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	userAgent      = "mailpanel/1.0"
	maxBodyBytes   = 8 << 20
	errBodyLogSize = 500

	authFailedMessage = "Authentication failed - check CPANEL_API_TOKEN and CPANEL_USER"
)

var (
	panelRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpanel_cpanel_requests_total",
			Help: "Total number of hosting panel calls",
		},
		[]string{"module", "function", "outcome"},
	)

	panelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailpanel_cpanel_request_duration_seconds",
			Help:    "Hosting panel call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"module", "function"},
	)
)

type Config struct {
	BaseURL string
	User    string
	Token   string
	// Domain is the single mailbox domain; "*" accepts the domain of each address.
	Domain string
}

// Client calls the panel's UAPI execute endpoint. Every call is a single
// attempt bounded only by the caller's context.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Domain returns the configured mailbox domain.
func (c *Client) Domain() string {
	return c.cfg.Domain
}

// Execute invokes module/function with params as a form-encoded POST. It never
// returns an error: transport and configuration failures are folded into the
// envelope.
func (c *Client) Execute(ctx context.Context, module, function string, params url.Values) *Envelope {
	start := time.Now()
	env := c.execute(ctx, module, function, params)

	outcome := "success"
	if !env.OK() {
		outcome = "failure"
	}
	panelRequestsTotal.WithLabelValues(module, function, outcome).Inc()
	panelRequestDuration.WithLabelValues(module, function).Observe(time.Since(start).Seconds())

	logger := zerolog.Ctx(ctx)
	if env.OK() {
		logger.Debug().Str("module", module).Str("function", function).
			Int("status", env.Status).Dur("duration", time.Since(start)).Msg("cpanel call")
	} else {
		logger.Warn().Str("module", module).Str("function", function).
			Int("status", env.Status).Strs("errors", env.Errors).Msg("cpanel call failed")
	}
	return env
}

func (c *Client) execute(ctx context.Context, module, function string, params url.Values) *Envelope {
	if c.cfg.Token == "" {
		return failure(http.StatusInternalServerError, ErrNotConfigured, "CPANEL_API_TOKEN is not configured")
	}
	if c.cfg.User == "" {
		return failure(http.StatusInternalServerError, ErrNotConfigured, "CPANEL_USER is not configured")
	}
	if params == nil {
		params = url.Values{}
	}

	endpoint := fmt.Sprintf("%s/execute/%s/%s", c.cfg.BaseURL, module, function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return transportFailure(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", fmt.Sprintf("cpanel %s:%s", c.cfg.User, c.cfg.Token))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure(fmt.Errorf("cpanel request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportFailure(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > errBodyLogSize {
			snippet = snippet[:errBodyLogSize]
		}
		zerolog.Ctx(ctx).Debug().Int("status", resp.StatusCode).Str("body", snippet).Msg("cpanel error response")

		if resp.StatusCode == http.StatusUnauthorized {
			return failure(resp.StatusCode, ErrAuthFailed, authFailedMessage)
		}
		return failure(resp.StatusCode, nil,
			fmt.Sprintf("HTTP error! status: %d - %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	if !gjson.ValidBytes(body) {
		return transportFailure(fmt.Errorf("decode response: invalid JSON"))
	}

	return Normalize(resp.StatusCode, body)
}
