package rpc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimitedTransport adds JSON headers, API key authentication and a
// request rate limit to an underlying RoundTripper
type RateLimitedTransport struct {
	Base        http.RoundTripper
	ApiKey      string
	RateLimiter *rate.Limiter
	Logger      *zerolog.Logger
}

// NewHTTPClient creates the HTTP client used for JSON-RPC calls against one endpoint
func NewHTTPClient(apiKey string, rateLimit float64, timeout time.Duration, logger *zerolog.Logger) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &RateLimitedTransport{
			Base:        http.DefaultTransport,
			ApiKey:      apiKey,
			RateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
			Logger:      logger,
		},
	}
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.RateLimiter != nil {
		// Wait for rate limit
		if err := t.RateLimiter.Wait(req.Context()); err != nil {
			if t.Logger != nil {
				t.Logger.Error().Err(err).Str("url", req.URL.Redacted()).Msg("Rate limit error")
			}
			return nil, fmt.Errorf("rate limit error: %w", err)
		}
	}

	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("Content-Type", "application/json")
	if t.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.ApiKey)
	}

	if t.Logger != nil {
		t.Logger.Debug().
			Str("url", req.URL.Redacted()).
			Str("method", req.Method).
			Msg("Making RPC call")
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
