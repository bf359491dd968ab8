package http

import (
	"math"
	"net/http"
	"time"
)

const (
	MethodGet     = http.MethodGet
	MethodPost    = http.MethodPost
	MethodPut     = http.MethodPut
	MethodDelete  = http.MethodDelete
	MethodPatch   = http.MethodPatch
	MethodOptions = http.MethodOptions
	MethodHead    = http.MethodHead
)

const (
	DefaultBaseURL   = "https://api.merqube.com"
	StagingBaseURL   = "https://staging.api.merqube.com"
	DefaultTokenType = "APIKEY"

	maxBackoff = 120 * time.Second
)

var validMethods = map[string]struct{}{
	MethodGet: {}, MethodPut: {}, MethodPatch: {}, MethodPost: {},
	MethodDelete: {}, MethodOptions: {}, MethodHead: {},
}

// SessionConfig is the comparable part of a session's setup; together with the token
// it keys the SessionCache. Zero fields take the `default` tag value.
type SessionConfig struct {
	BaseURL   string `yaml:"base_url" default:"https://api.merqube.com" validate:"required,url"`
	TokenType string `yaml:"token_type" default:"APIKEY" validate:"required"`

	Retries         int      `yaml:"retries" default:"3" validate:"gte=0,lte=20"`
	DisableRetries  bool     `yaml:"disable_retries"`
	BackoffFactor   float64  `yaml:"backoff_factor" default:"0.3" validate:"gte=0"`
	StatusForcelist []int    `yaml:"status_forcelist" default:"[502,504]" validate:"dive,gte=100,lte=599"`
	AllowedMethods  []string `yaml:"allowed_methods" default:"[\"GET\"]" validate:"dive,oneof=GET PUT PATCH POST DELETE OPTIONS HEAD"`

	// RequestTimeout bounds each attempt; 0 means no timeout.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`

	RequestIDPrefix  string `yaml:"request_id_prefix" default:"mqu_go_client"`
	DisableRequestID bool   `yaml:"disable_request_id"`

	// RateLimit is requests per second across attempts; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" default:"1" validate:"gte=1"`
}

// RetryPolicy decides which attempts are retried and how long to wait between them.
type RetryPolicy struct {
	Retries       int
	BackoffFactor float64
	statuses      map[int]struct{}
	methods       map[string]struct{}
}

// NewRetryPolicy builds a policy from a validated config.
func NewRetryPolicy(cfg SessionConfig) RetryPolicy {
	p := RetryPolicy{
		Retries:       cfg.Retries,
		BackoffFactor: cfg.BackoffFactor,
		statuses:      make(map[int]struct{}, len(cfg.StatusForcelist)),
		methods:       make(map[string]struct{}, len(cfg.AllowedMethods)),
	}
	if cfg.DisableRetries {
		p.Retries = 0
	}
	for _, s := range cfg.StatusForcelist {
		p.statuses[s] = struct{}{}
	}
	for _, m := range cfg.AllowedMethods {
		p.methods[m] = struct{}{}
	}
	return p
}

// AllowsMethod reports whether method may be retried.
func (p RetryPolicy) AllowsMethod(method string) bool {
	_, ok := p.methods[method]
	return ok && p.Retries > 0
}

// RetryStatus reports whether a response status triggers a retry.
func (p RetryPolicy) RetryStatus(code int) bool {
	_, ok := p.statuses[code]
	return ok
}

// Backoff is BackoffFactor * 2^attempt seconds, capped at two minutes.
// attempt counts from 0 for the wait before the first retry.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	secs := p.BackoffFactor * math.Pow(2, float64(attempt))
	if secs >= maxBackoff.Seconds() {
		return maxBackoff
	}
	return time.Duration(math.Round(secs * float64(time.Second)))
}
