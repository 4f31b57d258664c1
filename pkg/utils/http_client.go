package utils

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultRequestTimeout        = 5 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultDialTimeout           = time.Second
	defaultMaxIdleConnsPerHost   = 32
	defaultUserAgent             = "churnshield/1.0"
)

// HTTPClientConfig tunes the shared HTTP client used for outbound calls
// (remote model service, churn API client). Zero values fall back to defaults.
type HTTPClientConfig struct {
	RequestTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	DialTimeout           time.Duration
	MaxIdleConnsPerHost   int
	UserAgent             string
	// Base transport, mainly for tests. Replaces the tuned transport when set.
	Transport http.RoundTripper
}

type HTTPClientOption func(*HTTPClientConfig)

func WithRequestTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClientConfig) { c.RequestTimeout = d }
}

func WithResponseHeaderTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClientConfig) { c.ResponseHeaderTimeout = d }
}

func WithDialTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClientConfig) { c.DialTimeout = d }
}

func WithMaxIdleConnsPerHost(n int) HTTPClientOption {
	return func(c *HTTPClientConfig) { c.MaxIdleConnsPerHost = n }
}

func WithUserAgent(ua string) HTTPClientOption {
	return func(c *HTTPClientConfig) { c.UserAgent = ua }
}

func WithTransport(rt http.RoundTripper) HTTPClientOption {
	return func(c *HTTPClientConfig) { c.Transport = rt }
}

// NewHTTPClient builds an *http.Client with bounded timeouts and a User-Agent header.
func NewHTTPClient(opts ...HTTPClientOption) *http.Client {
	cfg := HTTPClientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ResponseHeaderTimeout <= 0 {
		cfg.ResponseHeaderTimeout = defaultResponseHeaderTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if IsEmpty(cfg.UserAgent) {
		cfg.UserAgent = defaultUserAgent
	}

	base := cfg.Transport
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			ForceAttemptHTTP2:     true,
		}
	}
	return &http.Client{
		Transport: userAgentTransport{ua: cfg.UserAgent, next: base},
		Timeout:   cfg.RequestTimeout,
	}
}

type userAgentTransport struct {
	ua   string
	next http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.next.RoundTrip(req)
}
