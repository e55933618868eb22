package store

import (
	"time"
)

type options struct {
	now    func() time.Time
	prefix string
}

// Option customises a store.
type Option func(*options)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithPrefix sets the key prefix used by the redis store.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		prefix: "fluxauth:",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
