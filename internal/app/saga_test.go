package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neomorfeo/wedlock/internal/app"
	"github.com/neomorfeo/wedlock/internal/domain"
)

func provisionInput(email, slug string) app.ProvisionInput {
	return app.ProvisionInput{
		Credential: "correct-horse-1",
		Request: domain.ProvisionRequest{
			Email:        email,
			Partner1Name: "Alice",
			Partner2Name: "Bob",
			Slug:         slug,
			ThemeID:      "classic",
			Flow:         domain.FlowTrial,
		},
	}
}

func TestProvisioner_Success(t *testing.T) {
	identities := newMockIdentities()
	tenants := &mockTenants{}
	logger, _ := newTestLogger()
	p := newProvisioner(identities, tenants, logger)

	outcome := p.Run(context.Background(), provisionInput("alice@example.com", "alice-bob"))

	if !outcome.Succeeded() {
		t.Fatalf("expected success, got state %q err %v", outcome.State, outcome.Err)
	}
	if outcome.State != domain.StateTenantCreated {
		t.Errorf("State = %q, want %q", outcome.State, domain.StateTenantCreated)
	}
	if len(tenants.requests) != 1 {
		t.Fatalf("expected 1 wedding request, got %d", len(tenants.requests))
	}
	if tenants.requests[0].IdentityID != "id-1" {
		t.Errorf("wedding requested for identity %q, want %q", tenants.requests[0].IdentityID, "id-1")
	}
	if outcome.Result.WeddingID == "" {
		t.Error("WeddingID should not be empty")
	}
}

func TestProvisioner_IdentityFailureStopsBeforeWedding(t *testing.T) {
	identities := newMockIdentities()
	identities.createErr = errBoom
	tenants := &mockTenants{}
	logger, _ := newTestLogger()
	p := newProvisioner(identities, tenants, logger)

	outcome := p.Run(context.Background(), provisionInput("alice@example.com", "alice-bob"))

	if outcome.State != domain.StateNotStarted {
		t.Errorf("State = %q, want %q", outcome.State, domain.StateNotStarted)
	}
	if !errors.Is(outcome.Err, errBoom) {
		t.Errorf("Err = %v, want %v", outcome.Err, errBoom)
	}
	if len(tenants.requests) != 0 {
		t.Errorf("wedding step ran %d times after identity failure", len(tenants.requests))
	}
}

func TestProvisioner_WeddingFailureRemovesIdentity(t *testing.T) {
	identities := newMockIdentities()
	tenants := &mockTenants{failures: []error{errBoom}}
	logger, _ := newTestLogger()
	p := newProvisioner(identities, tenants, logger)

	outcome := p.Run(context.Background(), provisionInput("alice@example.com", "alice-bob"))

	if outcome.Succeeded() {
		t.Fatal("expected failure")
	}
	if outcome.State != domain.StateNotStarted {
		t.Errorf("State = %q, want %q after rollback", outcome.State, domain.StateNotStarted)
	}
	if outcome.CompensationErr != nil {
		t.Errorf("CompensationErr = %v, want nil", outcome.CompensationErr)
	}
	if len(identities.deleted) != 1 || identities.deleted[0] != "id-1" {
		t.Errorf("deleted identities = %v, want [id-1]", identities.deleted)
	}
	if identities.count() != 0 {
		t.Errorf("%d identities left behind", identities.count())
	}

	// The same email can sign up again.
	outcome = p.Run(context.Background(), provisionInput("alice@example.com", "alice-bob"))
	if !outcome.Succeeded() {
		t.Fatalf("retry failed: %v", outcome.Err)
	}
}

func TestProvisioner_CompensationFailureIsOrphanedAndAlerted(t *testing.T) {
	identities := newMockIdentities()
	identities.deleteErr = errors.New("identity provider down")
	tenants := &mockTenants{failures: []error{errBoom}}
	logger, logs := newTestLogger()
	p := newProvisioner(identities, tenants, logger)

	outcome := p.Run(context.Background(), provisionInput("alice@example.com", "alice-bob"))

	if outcome.State != domain.StateOrphaned {
		t.Errorf("State = %q, want %q", outcome.State, domain.StateOrphaned)
	}
	if outcome.CompensationErr == nil {
		t.Fatal("expected CompensationErr")
	}
	if !outcome.CompensationErr.Orphaned() {
		t.Error("CompensationErr.Orphaned() = false, want true")
	}
	if outcome.CompensationErr.IdentityID != "id-1" {
		t.Errorf("IdentityID = %q, want %q", outcome.CompensationErr.IdentityID, "id-1")
	}

	out := logs.String()
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, `"alert":true`) {
		t.Errorf("orphaned identity not logged as an alert: %s", out)
	}
}

func TestProvisioner_CancelledRequestStillCompensates(t *testing.T) {
	identities := newMockIdentities()
	ctx, cancel := context.WithCancel(context.Background())
	tenants := &mockTenants{
		createFn: func(_ context.Context, _ domain.ProvisionRequest) error {
			// The client goes away while the wedding is being written.
			cancel()
			return context.Canceled
		},
	}
	logger, _ := newTestLogger()
	p := newProvisioner(identities, tenants, logger)

	outcome := p.Run(ctx, provisionInput("alice@example.com", "alice-bob"))

	if outcome.CompensationErr != nil {
		t.Fatalf("compensation failed: %v", outcome.CompensationErr)
	}
	if len(identities.deleted) != 1 {
		t.Errorf("deleted %d identities, want 1", len(identities.deleted))
	}
	if outcome.State != domain.StateNotStarted {
		t.Errorf("State = %q, want %q", outcome.State, domain.StateNotStarted)
	}
}
