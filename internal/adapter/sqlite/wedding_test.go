package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/wedlock/internal/adapter/sqlite"
	"github.com/neomorfeo/wedlock/internal/domain"
)

func provisionRequest(identityID, slug string) domain.ProvisionRequest {
	return domain.ProvisionRequest{
		IdentityID:   identityID,
		Email:        identityID + "@example.com",
		Partner1Name: "Alice",
		Partner2Name: "Bob",
		Slug:         slug,
		ThemeID:      "garden",
		Locale:       "fr",
		Flow:         domain.FlowTrial,
	}
}

func mustCreateWedding(t *testing.T, store *sqlite.WeddingStore, req domain.ProvisionRequest) domain.ProvisionResult {
	t.Helper()
	res, err := store.CreateWedding(context.Background(), req)
	if err != nil {
		t.Fatalf("mustCreateWedding failed: %v", err)
	}
	return res
}

func TestCreateWedding_And_GetBySlug(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	store := sqlite.NewWeddingStore(db, sqlite.WithClock(clock.Now))

	res := mustCreateWedding(t, store, provisionRequest("id-1", "alice-bob"))

	if res.WeddingID == "" {
		t.Error("WeddingID should not be empty")
	}
	if len(res.AccessCode) != 8 {
		t.Errorf("AccessCode = %q, want 8 characters", res.AccessCode)
	}
	if res.TrialEndsAt == nil || !res.TrialEndsAt.Equal(clock.Now().Add(domain.TrialPeriod)) {
		t.Errorf("TrialEndsAt = %v, want now + trial period", res.TrialEndsAt)
	}

	got, err := store.GetBySlug(context.Background(), "alice-bob")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if got.ID != res.WeddingID {
		t.Errorf("ID = %q, want %q", got.ID, res.WeddingID)
	}
	if got.OwnerID != "id-1" {
		t.Errorf("OwnerID = %q, want %q", got.OwnerID, "id-1")
	}
	if got.DisplayName != "Alice & Bob" {
		t.Errorf("DisplayName = %q", got.DisplayName)
	}
	if got.Config.ThemeID != "garden" || got.Config.Locale != "fr" {
		t.Errorf("Config = %+v", got.Config)
	}
	if got.Flow != domain.FlowTrial {
		t.Errorf("Flow = %q, want trial", got.Flow)
	}
}

func TestCreateWedding_PaidHasNoTrial(t *testing.T) {
	store := sqlite.NewWeddingStore(newTestDB(t))

	req := provisionRequest("id-1", "alice-bob")
	req.Flow = domain.FlowPaid
	res := mustCreateWedding(t, store, req)

	if res.TrialEndsAt != nil {
		t.Errorf("TrialEndsAt = %v, want nil for paid weddings", res.TrialEndsAt)
	}
}

func TestGetBySlug_NotFound(t *testing.T) {
	store := sqlite.NewWeddingStore(newTestDB(t))

	_, err := store.GetBySlug(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrWeddingNotFound) {
		t.Errorf("expected ErrWeddingNotFound, got %v", err)
	}
}

func TestCreateWedding_DuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewWeddingStore(db)

	mustCreateWedding(t, store, provisionRequest("id-1", "alice-bob"))

	_, err := store.CreateWedding(context.Background(), provisionRequest("id-2", "alice-bob"))
	assertConflict(t, err, domain.ConflictTaken)

	// Nothing of the losing attempt may remain.
	var profiles int
	if err := db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE id = 'id-2'`).Scan(&profiles); err != nil {
		t.Fatalf("counting profiles: %v", err)
	}
	if profiles != 0 {
		t.Errorf("found %d profiles for the losing identity, want 0", profiles)
	}
}

func TestCreateWedding_LiveReservationConflicts(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	reservations := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	store := sqlite.NewWeddingStore(db, sqlite.WithClock(clock.Now))

	mustReserve(t, reservations, newReservation(clock, 1, "alice-bob"))

	_, err := store.CreateWedding(context.Background(), provisionRequest("id-1", "alice-bob"))
	assertConflict(t, err, domain.ConflictReserved)
}

func TestCreateWedding_TakesOverExpiredReservation(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	reservations := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	store := sqlite.NewWeddingStore(db, sqlite.WithClock(clock.Now))

	mustReserve(t, reservations, newReservation(clock, 1, "alice-bob"))
	clock.Advance(domain.ReservationTTL)

	mustCreateWedding(t, store, provisionRequest("id-1", "alice-bob"))
}

func TestCreateWedding_FinalizesOwnReservation(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock()
	reservations := sqlite.NewReservationStore(db, sqlite.WithClock(clock.Now))
	store := sqlite.NewWeddingStore(db, sqlite.WithClock(clock.Now))
	ctx := context.Background()

	mustReserve(t, reservations, newReservation(clock, 1, "alice-bob"))

	req := provisionRequest("id-1", "alice-bob")
	req.Flow = domain.FlowPaid
	req.ReservationID = "r-1"
	mustCreateWedding(t, store, req)

	r, err := reservations.GetBySessionID(ctx, "cs_1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if r.Status != domain.ReservationCompleted {
		t.Errorf("reservation status = %q, want completed", r.Status)
	}

	claim, err := reservations.LookupSlug(ctx, "alice-bob")
	if err != nil {
		t.Fatalf("LookupSlug failed: %v", err)
	}
	if claim.Holder != domain.HolderWedding {
		t.Errorf("claim holder = %q, want tenant", claim.Holder)
	}
}

func TestCreateWedding_OneWeddingPerOwner(t *testing.T) {
	store := sqlite.NewWeddingStore(newTestDB(t))

	mustCreateWedding(t, store, provisionRequest("id-1", "alice-bob"))

	_, err := store.CreateWedding(context.Background(), provisionRequest("id-1", "carol-dan"))
	if err == nil {
		t.Fatal("expected error creating a second wedding for the same owner")
	}
	var conflict *domain.SlugConflictError
	if errors.As(err, &conflict) {
		t.Errorf("owner collision must not be reported as a slug conflict: %v", err)
	}
}

func TestCreateWedding_WeddingDateRoundTrip(t *testing.T) {
	store := sqlite.NewWeddingStore(newTestDB(t))

	date := time.Date(2027, 6, 19, 0, 0, 0, 0, time.UTC)
	req := provisionRequest("id-1", "alice-bob")
	req.WeddingDate = &date
	mustCreateWedding(t, store, req)

	got, err := store.GetBySlug(context.Background(), "alice-bob")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if got.Config.WeddingDate == nil || !got.Config.WeddingDate.Equal(date) {
		t.Errorf("WeddingDate = %v, want %v", got.Config.WeddingDate, date)
	}
}
