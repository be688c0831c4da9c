package botapi

import (
	"net/http"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Config is the out-of-band connection setup of the bot API.
type Config struct {
	BaseURL     string
	APIKey      string
	AdminAPIKey string
	Timeout     time.Duration
	Breaker     BreakerConfig
}

// BreakerConfig tunes the circuit breaker in front of the bot API.
type BreakerConfig struct {
	Enabled bool
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests are let through while probing.
	HalfOpenRequests uint32
}

// Option defines a functional configuration type for the Transport.
type Option func(*Transport)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		t.http = c
	}
}

// WithUserAgent sets the User-Agent sent on every call.
func WithUserAgent(ua string) Option {
	return func(t *Transport) {
		t.userAgent = ua
	}
}
