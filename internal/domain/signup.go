package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 72 // bcrypt ignores anything beyond 72 bytes
	NameMaxLength     = 100
	EmailMaxLength    = 254
)

// Themes is the catalogue of site themes a wedding can start with.
var Themes = map[string]struct{}{
	"classic":  {},
	"modern":   {},
	"rustic":   {},
	"bohemian": {},
	"garden":   {},
	"minimal":  {},
}

// DefaultTheme is applied when the signup does not name one.
const DefaultTheme = "classic"

var validate = validator.New()

// SignupInput is the data collected by the signup wizard, shared by the
// trial and checkout flows.
type SignupInput struct {
	Email        string
	Password     string
	Partner1Name string
	Partner2Name string
	WeddingDate  *time.Time
	Slug         string
	ThemeID      string
}

// Normalize trims free-text fields and canonicalizes email and slug.
func (in SignupInput) Normalize() SignupInput {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Partner1Name = strings.TrimSpace(in.Partner1Name)
	in.Partner2Name = strings.TrimSpace(in.Partner2Name)
	in.Slug = NormalizeSlug(in.Slug)
	in.ThemeID = strings.TrimSpace(in.ThemeID)
	if in.ThemeID == "" {
		in.ThemeID = DefaultTheme
	}
	return in
}

// Validate checks every field and returns the first *FieldError found.
// It expects a normalized input and performs no I/O.
func (in SignupInput) Validate(now time.Time) error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := validateName("partner1_name", in.Partner1Name); err != nil {
		return err
	}
	if err := validateName("partner2_name", in.Partner2Name); err != nil {
		return err
	}
	if in.WeddingDate != nil {
		today := now.UTC().Truncate(24 * time.Hour)
		if in.WeddingDate.UTC().Before(today) {
			return &FieldError{Field: "wedding_date", Message: "Wedding date cannot be in the past"}
		}
	}
	if err := ValidateSlug(in.Slug); err != nil {
		return err
	}
	if _, ok := Themes[in.ThemeID]; !ok {
		return &FieldError{Field: "theme_id", Message: "Unknown theme"}
	}
	return nil
}

// ValidateEmail checks email format.
func ValidateEmail(email string) error {
	if email == "" {
		return &FieldError{Field: "email", Message: "Email is required"}
	}
	if len(email) > EmailMaxLength || validate.Var(email, "email") != nil {
		return &FieldError{Field: "email", Message: "Email address is invalid"}
	}
	return nil
}

// ValidatePassword enforces the credential strength policy.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return &FieldError{Field: "password", Message: "Password must be at least 8 characters"}
	}
	if len(password) > PasswordMaxLength {
		return &FieldError{Field: "password", Message: "Password must be at most 72 characters"}
	}

	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return &FieldError{Field: "password", Message: "Password must contain at least one letter and one digit"}
	}
	return nil
}

// ValidateSlug applies format then blocklist checks to a normalized slug.
func ValidateSlug(slug string) error {
	if slug == "" {
		return &FieldError{Field: "slug", Message: "Site address is required"}
	}
	if !ValidateSlugFormat(slug) {
		return &FieldError{
			Field:   "slug",
			Message: "Site address must be 3-50 lowercase letters, digits or hyphens, and start and end with a letter or digit",
		}
	}
	if IsReservedSlug(slug) {
		return &FieldError{Field: "slug", Message: "This site address is reserved"}
	}
	return nil
}

func validateName(field, name string) error {
	if name == "" {
		return &FieldError{Field: field, Message: "Name is required"}
	}
	if utf8.RuneCountInString(name) > NameMaxLength {
		return &FieldError{Field: field, Message: "Name must be at most 100 characters"}
	}
	return nil
}
