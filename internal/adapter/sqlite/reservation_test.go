package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/neomorfeo/wedlock/internal/adapter/sqlite"
	"github.com/neomorfeo/wedlock/internal/domain"
)

// testClock is a settable time source shared by the stores under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestDB creates an in-memory, migrated SQLite database.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newReservation(clock *testClock, n int, slug string) domain.Reservation {
	in := domain.SignupInput{
		Email:        fmt.Sprintf("owner%d@example.com", n),
		Partner1Name: "Alice",
		Partner2Name: "Bob",
		Slug:         slug,
		ThemeID:      "classic",
	}
	return domain.NewReservation(fmt.Sprintf("r-%d", n), fmt.Sprintf("cs_%d", n), in, "en", clock.Now(), domain.ReservationTTL)
}

func mustReserve(t *testing.T, store *sqlite.ReservationStore, r domain.Reservation) {
	t.Helper()
	if _, err := store.TryReserve(context.Background(), r); err != nil {
		t.Fatalf("mustReserve failed: %v", err)
	}
}

func assertConflict(t *testing.T, err error, reason domain.ConflictReason) {
	t.Helper()
	var conflict *domain.SlugConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SlugConflictError, got %v", err)
	}
	if conflict.Reason != reason {
		t.Errorf("reason = %q, want %q", conflict.Reason, reason)
	}
}

func TestTryReserve_And_GetBySessionID(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	ctx := context.Background()

	date := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)
	r := newReservation(clock, 1, "alice-bob")
	r.WeddingDate = &date
	mustReserve(t, store, r)

	got, err := store.GetBySessionID(ctx, "cs_1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if got.ID != "r-1" || got.Slug != "alice-bob" || got.Email != "owner1@example.com" {
		t.Errorf("got %+v", got)
	}
	if got.Status != domain.ReservationPending {
		t.Errorf("Status = %q, want %q", got.Status, domain.ReservationPending)
	}
	if got.WeddingDate == nil || !got.WeddingDate.Equal(date) {
		t.Errorf("WeddingDate = %v, want %v", got.WeddingDate, date)
	}
	if !got.ExpiresAt.Equal(clock.Now().Add(domain.ReservationTTL)) {
		t.Errorf("ExpiresAt = %v", got.ExpiresAt)
	}
}

func TestGetBySessionID_NotFound(t *testing.T) {
	store := sqlite.NewReservationStore(newTestDB(t))

	_, err := store.GetBySessionID(context.Background(), "cs_missing")
	if !errors.Is(err, domain.ErrReservationNotFound) {
		t.Errorf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestTryReserve_SecondWriteConflicts(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))

	mustReserve(t, store, newReservation(clock, 1, "alice-bob"))

	_, err := store.TryReserve(context.Background(), newReservation(clock, 2, "alice-bob"))
	assertConflict(t, err, domain.ConflictReserved)

	// The losing reservation must not have been written.
	if _, err := store.GetBySessionID(context.Background(), "cs_2"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Errorf("losing reservation persisted: %v", err)
	}
}

func TestTryReserve_Concurrent_ExactlyOneWins(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.TryReserve(context.Background(), newReservation(clock, i, "alice-bob"))
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assertConflict(t, err, domain.ConflictReserved)
	}
	if wins != 1 {
		t.Errorf("got %d successful reservations, want exactly 1", wins)
	}
}

func TestTryReserve_ExpiredReservationDoesNotBlock(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	ctx := context.Background()

	mustReserve(t, store, newReservation(clock, 1, "alice-bob"))

	clock.Advance(domain.ReservationTTL + time.Minute)

	// No ExpireStale run: the stale hold is released by the write itself.
	if _, err := store.TryReserve(ctx, newReservation(clock, 2, "alice-bob")); err != nil {
		t.Fatalf("TryReserve after TTL failed: %v", err)
	}

	old, err := store.GetBySessionID(ctx, "cs_1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if old.Status != domain.ReservationExpired {
		t.Errorf("old reservation status = %q, want %q", old.Status, domain.ReservationExpired)
	}
}

func TestTryReserve_FinalizedWeddingIsPermanentConflict(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	weddings := sqlite.NewWeddingStore(db, sqlite.WithClock(clock.Now))

	mustCreateWedding(t, weddings, provisionRequest("id-1", "alice-bob"))

	_, err := store.TryReserve(context.Background(), newReservation(clock, 1, "alice-bob"))
	assertConflict(t, err, domain.ConflictTaken)

	// Time passing never frees a finalized slug.
	clock.Advance(10 * domain.ReservationTTL)
	_, err = store.TryReserve(context.Background(), newReservation(clock, 2, "alice-bob"))
	assertConflict(t, err, domain.ConflictTaken)
}

func TestTryReserve_DuplicateSessionRollsBackClaim(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	ctx := context.Background()

	mustReserve(t, store, newReservation(clock, 1, "alice-bob"))

	dup := newReservation(clock, 2, "carol-dan")
	dup.SessionID = "cs_1"
	if _, err := store.TryReserve(ctx, dup); err == nil {
		t.Fatal("expected error for duplicate session id")
	}

	claim, err := store.LookupSlug(ctx, "carol-dan")
	if err != nil {
		t.Fatalf("LookupSlug failed: %v", err)
	}
	if claim.Holder != domain.HolderNone {
		t.Errorf("claim holder = %q, want none after rollback", claim.Holder)
	}
}

func TestLookupSlug(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	weddings := sqlite.NewWeddingStore(db, sqlite.WithClock(clock.Now))
	ctx := context.Background()

	mustReserve(t, store, newReservation(clock, 1, "alice-bob"))
	mustCreateWedding(t, weddings, provisionRequest("id-1", "carol-dan"))

	cases := []struct {
		slug string
		want domain.ClaimHolder
	}{
		{"alice-bob", domain.HolderReservation},
		{"carol-dan", domain.HolderWedding},
		{"free-slug", domain.HolderNone},
	}
	for _, tc := range cases {
		claim, err := store.LookupSlug(ctx, tc.slug)
		if err != nil {
			t.Fatalf("LookupSlug(%q) failed: %v", tc.slug, err)
		}
		if claim.Holder != tc.want {
			t.Errorf("LookupSlug(%q) holder = %q, want %q", tc.slug, claim.Holder, tc.want)
		}
	}

	clock.Advance(domain.ReservationTTL)
	claim, err := store.LookupSlug(ctx, "alice-bob")
	if err != nil {
		t.Fatalf("LookupSlug failed: %v", err)
	}
	if claim.Holder != domain.HolderNone {
		t.Errorf("expired reservation should read as free, got %q", claim.Holder)
	}
}

func TestRelease(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	ctx := context.Background()

	mustReserve(t, store, newReservation(clock, 1, "alice-bob"))

	if err := store.Release(ctx, "r-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := store.TryReserve(ctx, newReservation(clock, 2, "alice-bob")); err != nil {
		t.Fatalf("TryReserve after release failed: %v", err)
	}

	if err := store.Release(ctx, "missing"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Errorf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestExpireStale(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	ctx := context.Background()

	mustReserve(t, store, newReservation(clock, 1, "alice-bob"))
	clock.Advance(time.Hour)
	mustReserve(t, store, newReservation(clock, 2, "carol-dan"))

	// Only the first reservation is past its TTL.
	n, err := store.ExpireStale(ctx, clock.Now().Add(domain.ReservationTTL-30*time.Minute))
	if err != nil {
		t.Fatalf("ExpireStale failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d reservations, want 1", n)
	}

	r1, _ := store.GetBySessionID(ctx, "cs_1")
	if r1.Status != domain.ReservationExpired {
		t.Errorf("r-1 status = %q, want expired", r1.Status)
	}
	r2, _ := store.GetBySessionID(ctx, "cs_2")
	if r2.Status != domain.ReservationPending {
		t.Errorf("r-2 status = %q, want pending", r2.Status)
	}
}
