package app_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/neomorfeo/wedlock/internal/adapter/fsm"
	"github.com/neomorfeo/wedlock/internal/adapter/sqlite"
	"github.com/neomorfeo/wedlock/internal/app"
	"github.com/neomorfeo/wedlock/internal/domain"
)

// --- Mocks ---

type mockIdentities struct {
	mu        sync.Mutex
	byEmail   map[string]string
	created   int
	deleted   []string
	createErr error
	deleteErr error
	lookupErr error
	inviteErr error
	// invites maps an issued token to its identity.
	invites   map[string]string
}

func newMockIdentities() *mockIdentities {
	return &mockIdentities{byEmail: make(map[string]string), invites: make(map[string]string)}
}

func (m *mockIdentities) CreateIdentity(_ context.Context, email, _ string, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	if _, ok := m.byEmail[email]; ok {
		return "", domain.ErrIdentityExists
	}
	m.created++
	id := fmt.Sprintf("id-%d", m.created)
	m.byEmail[email] = id
	return id, nil
}

func (m *mockIdentities) DeleteIdentity(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for email, existing := range m.byEmail {
		if existing == id {
			delete(m.byEmail, email)
		}
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIdentities) EmailRegistered(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *mockIdentities) IssueCredentialInvite(_ context.Context, identityID string, _ time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inviteErr != nil {
		return "", m.inviteErr
	}
	token := fmt.Sprintf("tok-%d", len(m.invites)+1)
	m.invites[token] = identityID
	return token, nil
}

func (m *mockIdentities) RedeemCredentialInvite(_ context.Context, token, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.invites[token]
	if !ok {
		return "", domain.ErrInviteInvalid
	}
	delete(m.invites, token)
	return id, nil
}

func (m *mockIdentities) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byEmail)
}

// mockTenants records provisioning requests. failures are consumed one per
// call before any wedding is created.
type mockTenants struct {
	mu       sync.Mutex
	requests []domain.ProvisionRequest
	failures []error
	createFn func(ctx context.Context, req domain.ProvisionRequest) error
}

func (m *mockTenants) CreateWedding(ctx context.Context, req domain.ProvisionRequest) (domain.ProvisionResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var err error
	if len(m.failures) > 0 {
		err, m.failures = m.failures[0], m.failures[1:]
	}
	fn := m.createFn
	m.mu.Unlock()

	if err == nil && fn != nil {
		err = fn(ctx, req)
	}
	if err != nil {
		return domain.ProvisionResult{}, err
	}

	ends := time.Date(2026, 5, 15, 10, 0, 0, 0, time.UTC)
	return domain.ProvisionResult{
		IdentityID:  req.IdentityID,
		WeddingID:   "w-" + req.Slug,
		Email:       req.Email,
		Slug:        req.Slug,
		AccessCode:  "ABCD2345",
		TrialEndsAt: &ends,
	}, nil
}

func (m *mockTenants) GetBySlug(_ context.Context, _ string) (domain.Wedding, error) {
	return domain.Wedding{}, domain.ErrWeddingNotFound
}

type mockPayments struct {
	mu        sync.Mutex
	requests  []domain.CheckoutSessionRequest
	expired   []string
	createErr error
	// beforeReturn runs after the session exists, before it is returned.
	beforeReturn func()
}

func (m *mockPayments) CreateCheckoutSession(_ context.Context, req domain.CheckoutSessionRequest) (domain.CheckoutSession, error) {
	m.mu.Lock()
	if m.createErr != nil {
		m.mu.Unlock()
		return domain.CheckoutSession{}, m.createErr
	}
	m.requests = append(m.requests, req)
	id := fmt.Sprintf("cs_test_%d", len(m.requests))
	hook := m.beforeReturn
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return domain.CheckoutSession{ID: id, URL: "https://pay.example.com/" + id}, nil
}

func (m *mockPayments) ExpireCheckoutSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired = append(m.expired, sessionID)
	return nil
}

func (m *mockPayments) sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockPayments) expiredSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.expired...)
}

// mockNotifier reports every call on sent. It can fail or panic on demand.
type mockNotifier struct {
	sent  chan domain.Welcome
	err   error
	panics bool
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{sent: make(chan domain.Welcome, 4)}
}

func (m *mockNotifier) NotifyWelcome(_ context.Context, w domain.Welcome) error {
	m.sent <- w
	if m.panics {
		panic("smtp exploded")
	}
	return m.err
}

func (m *mockNotifier) wait(t *testing.T) domain.Welcome {
	t.Helper()
	select {
	case w := <-m.sent:
		return w
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for welcome notification")
		return domain.Welcome{}
	}
}

// stubReservations serves a fixed pre-check answer and a fixed write result.
type stubReservations struct {
	claim      domain.SlugClaim
	lookupErr  error
	reserveErr error
	reserved   []domain.Reservation
}

func (s *stubReservations) TryReserve(_ context.Context, r domain.Reservation) (domain.Reservation, error) {
	if s.reserveErr != nil {
		return domain.Reservation{}, s.reserveErr
	}
	s.reserved = append(s.reserved, r)
	return r, nil
}

func (s *stubReservations) LookupSlug(_ context.Context, slug string) (domain.SlugClaim, error) {
	c := s.claim
	c.Slug = slug
	return c, s.lookupErr
}

func (s *stubReservations) GetBySessionID(_ context.Context, _ string) (domain.Reservation, error) {
	return domain.Reservation{}, domain.ErrReservationNotFound
}

func (s *stubReservations) Release(_ context.Context, _ string) error { return nil }

func (s *stubReservations) ExpireStale(_ context.Context, _ time.Time) (int, error) { return 0, nil }

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// --- Helpers ---

var errBoom = errors.New("boom")

// testNow is a fixed instant used as "now" by every service under test.
var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestLogger() (*slog.Logger, *lockedBuffer) {
	buf := &lockedBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func signupInput(slug string) domain.SignupInput {
	return domain.SignupInput{
		Email:        "alice@example.com",
		Password:     "correct-horse-1",
		Partner1Name: "Alice",
		Partner2Name: "Bob",
		Slug:         slug,
		ThemeID:      "classic",
	}
}

func newProvisioner(identities domain.IdentityProvider, tenants domain.TenantProvisioner, logger *slog.Logger) *app.Provisioner {
	return app.NewProvisioner(identities, tenants, fsm.NewProvisionValidator(), app.WithLogger(logger))
}
