package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// Compile-time check: Dispatcher implements domain.Notifier.
var _ domain.Notifier = (*Dispatcher)(nil)

// WelcomeJobArgs carries everything the welcome worker needs, so the worker
// never queries the database. It never contains the owner's password.
// SetPasswordURL holds a single-use invite that expires on its own.
type WelcomeJobArgs struct {
	Email          string     `json:"email"`
	Slug           string     `json:"slug"`
	Locale         string     `json:"locale"`
	Flow           string     `json:"flow"`
	AccessCode     string     `json:"access_code"`
	TrialEndsAt    *time.Time `json:"trial_ends_at,omitempty"`
	SetPasswordURL string     `json:"set_password_url,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (WelcomeJobArgs) Kind() string { return "notify.welcome" }

// InsertOpts bounds delivery retries.
func (WelcomeJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

func (a WelcomeJobArgs) welcome() domain.Welcome {
	return domain.Welcome{
		Email:          a.Email,
		Slug:           a.Slug,
		Locale:         a.Locale,
		Flow:           domain.Flow(a.Flow),
		AccessCode:     a.AccessCode,
		TrialEndsAt:    a.TrialEndsAt,
		SetPasswordURL: a.SetPasswordURL,
	}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Dispatcher implements domain.Notifier by enqueuing River jobs. Delivery
// and its retries happen in the worker, outside the signup request.
type Dispatcher struct {
	client *Client
}

// NewDispatcher creates a dispatcher backed by the given River client.
func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// NotifyWelcome enqueues a welcome notification.
func (d *Dispatcher) NotifyWelcome(ctx context.Context, w domain.Welcome) error {
	_, err := d.client.Insert(ctx, WelcomeJobArgs{
		Email:          w.Email,
		Slug:           w.Slug,
		Locale:         w.Locale,
		Flow:           string(w.Flow),
		AccessCode:     w.AccessCode,
		TrialEndsAt:    w.TrialEndsAt,
		SetPasswordURL: w.SetPasswordURL,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing welcome job: %w", err)
	}
	return nil
}
