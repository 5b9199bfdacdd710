package domain

import (
	"strings"
	"time"
)

// Flow identifies which signup path provisioned a wedding.
type Flow string

const (
	FlowTrial Flow = "trial"
	FlowPaid  Flow = "paid"
)

// TrialPeriod is how long a trial wedding stays free.
const TrialPeriod = 14 * 24 * time.Hour

// Wedding is the finalized tenant: one public site owned by one identity.
// Its slug never changes after creation.
type Wedding struct {
	ID          string
	OwnerID     string
	Slug        string
	DisplayName string
	Flow        Flow
	AccessCode  string
	Config      WeddingConfig
	TrialEndsAt *time.Time
	CreatedAt   time.Time
}

// WeddingConfig is the configuration blob stored with a wedding.
type WeddingConfig struct {
	ThemeID      string     `json:"theme_id"`
	Partner1Name string     `json:"partner1_name"`
	Partner2Name string     `json:"partner2_name"`
	WeddingDate  *time.Time `json:"wedding_date,omitempty"`
	Locale       string     `json:"locale,omitempty"`
}

// DisplayName builds the public site title from the partners' names.
func DisplayName(partner1, partner2 string) string {
	return strings.TrimSpace(partner1) + " & " + strings.TrimSpace(partner2)
}

// ProvisionRequest is the input to the atomic owner profile + wedding
// creation. ReservationID is set when a paid reservation is being finalized;
// its own claim on the slug is then taken over instead of conflicting.
type ProvisionRequest struct {
	IdentityID    string
	Email         string
	Partner1Name  string
	Partner2Name  string
	WeddingDate   *time.Time
	Slug          string
	ThemeID       string
	Locale        string
	Flow          Flow
	ReservationID string
}

// ProvisionResult is what the atomic creation returns on commit.
type ProvisionResult struct {
	IdentityID  string
	WeddingID   string
	Email       string
	Slug        string
	AccessCode  string
	TrialEndsAt *time.Time
}
