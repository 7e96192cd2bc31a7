package httpx

import "time"

type Option func(opts *options)

type options struct {
	userAgent     string
	timeout       time.Duration
	attempts      int
	respectRobots bool
	headers       map[string]string
}

var defaultOptions = options{
	userAgent:     DefaultUserAgent,
	timeout:       15 * time.Second,
	attempts:      1,
	respectRobots: true,
}

func WithUserAgent(ua string) Option {
	return func(opts *options) {
		if ua != "" {
			opts.userAgent = ua
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(opts *options) {
		if d > 0 {
			opts.timeout = d
		}
	}
}

// WithAttempts sets how many times a request is tried when the server answers
// 429 or 5xx. One means no retries.
func WithAttempts(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.attempts = n
		}
	}
}

func WithRobots(respect bool) Option {
	return func(opts *options) {
		opts.respectRobots = respect
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(opts *options) {
		h := make(map[string]string, len(opts.headers)+1)
		for k, v := range opts.headers {
			h[k] = v
		}
		h[key] = value
		opts.headers = h
	}
}
