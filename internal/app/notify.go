package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// welcomeSender fires welcome notifications without waiting for them.
type welcomeSender struct {
	notifier domain.Notifier
	logger   *slog.Logger
	timeout  time.Duration
}

func newWelcomeSender(n domain.Notifier, s settings) welcomeSender {
	return welcomeSender{notifier: n, logger: s.logger, timeout: s.notifyTimeout}
}

// send starts the notification in its own goroutine and returns at once.
// Errors and panics are logged and never reach the caller; the account
// already exists at this point.
func (w welcomeSender) send(ctx context.Context, msg domain.Welcome) {
	if w.notifier == nil {
		return
	}

	// Keep trace and request values, drop the request's cancellation.
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.ErrorContext(ctx, "welcome notification panicked", "panic", r, "slug", msg.Slug)
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()

		if err := w.notifier.NotifyWelcome(ctx, msg); err != nil {
			w.logger.WarnContext(ctx, "welcome notification failed",
				"error", err,
				"slug", msg.Slug,
				"flow", msg.Flow,
			)
		}
	}()
}
