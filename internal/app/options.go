package app

import (
	"log/slog"
	"time"
)

// Default timeouts for calls that leave the process.
const (
	DefaultStepTimeout         = 10 * time.Second
	DefaultCompensationTimeout = 15 * time.Second
	DefaultNotifyTimeout       = 30 * time.Second
)

// Option customizes a service.
type Option func(*settings)

type settings struct {
	logger              *slog.Logger
	now                 func() time.Time
	stepTimeout         time.Duration
	compensationTimeout time.Duration
	notifyTimeout       time.Duration
}

// WithLogger sets the logger used for operator-facing events.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithStepTimeout bounds each call to a payment, identity or storage provider.
func WithStepTimeout(d time.Duration) Option {
	return func(s *settings) { s.stepTimeout = d }
}

// WithCompensationTimeout bounds the undo of a partially completed signup.
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *settings) { s.compensationTimeout = d }
}

// WithNotifyTimeout bounds a single welcome notification attempt.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *settings) { s.notifyTimeout = d }
}

func buildSettings(opts []Option) settings {
	s := settings{
		logger:              slog.Default(),
		now:                 time.Now,
		stepTimeout:         DefaultStepTimeout,
		compensationTimeout: DefaultCompensationTimeout,
		notifyTimeout:       DefaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
