package river

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// WelcomeSender delivers a rendered welcome message.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, w domain.Welcome) error
}

// WelcomeWorker delivers welcome notifications. A returned error makes
// River retry the job with backoff.
type WelcomeWorker struct {
	river.WorkerDefaults[WelcomeJobArgs]
	sender WelcomeSender
}

// Timeout bounds a single delivery attempt.
func (w *WelcomeWorker) Timeout(*river.Job[WelcomeJobArgs]) time.Duration {
	return 30 * time.Second
}

// Work sends one welcome message.
func (w *WelcomeWorker) Work(ctx context.Context, job *river.Job[WelcomeJobArgs]) error {
	slog.InfoContext(ctx, "sending welcome",
		"slug", job.Args.Slug,
		"locale", job.Args.Locale,
		"flow", job.Args.Flow,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.sender.SendWelcome(ctx, job.Args.welcome())
}

// ExpireReservationsArgs is the periodic sweep of stale reservations.
type ExpireReservationsArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (ExpireReservationsArgs) Kind() string { return "reservations.expire" }

// Sweeper expires stale reservations.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// ExpiryWorker runs the reservation sweep.
type ExpiryWorker struct {
	river.WorkerDefaults[ExpireReservationsArgs]
	sweeper Sweeper
}

// Work runs one sweep.
func (w *ExpiryWorker) Work(ctx context.Context, job *river.Job[ExpireReservationsArgs]) error {
	n, err := w.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "reservation sweep done", "expired", n, "job_id", job.ID)
	return nil
}
