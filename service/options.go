package service

import (
	"io"
	"log/slog"
	"time"

	"github.com/layer-3/fluxauth/ports"
)

// Option configures the collaborators shared by every service.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	now     func() time.Time
	metrics ports.Metrics
	events  ports.EventPublisher
}

// WithLogger sets the parent logger. Each service derives a component child.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m ports.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEvents sets the publisher notified of logins and logouts.
func WithEvents(p ports.EventPublisher) Option {
	return func(o *options) { o.events = p }
}

func buildOptions(component string, opts []Option) options {
	o := options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		metrics: ports.NopMetrics{},
		events:  ports.NopPublisher{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", component)
	return o
}
