package domain

import (
	"regexp"
	"strconv"
	"strings"

	gosimpleslug "github.com/gosimple/slug"
)

const (
	SlugMinLength = 3
	SlugMaxLength = 50
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

// reservedSlugs cannot be claimed by any wedding: they collide with system
// routes, language prefixes or infrastructure paths served on the same host.
var reservedSlugs = map[string]struct{}{
	// System routes.
	"admin": {}, "api": {}, "app": {}, "auth": {}, "login": {}, "logout": {},
	"signup": {}, "register": {}, "checkout": {}, "dashboard": {}, "settings": {},
	"account": {}, "billing": {}, "pricing": {}, "support": {}, "help": {},
	"docs": {}, "blog": {}, "about": {}, "contact": {}, "terms": {}, "privacy": {},
	"legal": {}, "status": {}, "webhooks": {}, "callback": {}, "success": {},
	"cancel": {}, "new": {}, "edit": {}, "preview": {}, "demo": {}, "test": {},
	"wedding": {}, "weddings": {}, "rsvp": {}, "guests": {}, "themes": {},
	// Language prefixes.
	"en": {}, "fr": {}, "es": {}, "de": {}, "it": {}, "pt": {}, "nl": {},
	// Infrastructure paths.
	"www": {}, "mail": {}, "smtp": {}, "ftp": {}, "cdn": {}, "static": {},
	"assets": {}, "media": {}, "uploads": {}, "images": {}, "health": {},
	"healthz": {}, "metrics": {}, "robots": {}, "sitemap": {}, "favicon": {},
	"root": {}, "null": {}, "undefined": {},
}

// ValidateSlugFormat reports whether slug satisfies the length and character
// rules. It does not normalize.
func ValidateSlugFormat(slug string) bool {
	if len(slug) < SlugMinLength || len(slug) > SlugMaxLength {
		return false
	}
	if !slugPattern.MatchString(slug) {
		return false
	}
	// Three-character slugs must be purely alphanumeric.
	if len(slug) == SlugMinLength && strings.Contains(slug, "-") {
		return false
	}
	return true
}

// IsReservedSlug reports whether slug is on the static blocklist.
func IsReservedSlug(slug string) bool {
	_, ok := reservedSlugs[slug]
	return ok
}

// NormalizeSlug lowercases and trims surrounding whitespace.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// SuggestSlugAlternatives returns deterministic fallback candidates for slug.
// Every candidate passes ValidateSlugFormat and is not reserved. The list is
// meant for display; callers must never apply a candidate on the user's behalf.
func SuggestSlugAlternatives(slug string, year int) []string {
	base := strings.Trim(NormalizeSlug(slug), "-")
	if base == "" {
		return nil
	}

	suffixes := []string{
		strconv.Itoa(year),
		strconv.Itoa(year + 1),
	}
	for n := 2; n <= 4; n++ {
		suffixes = append(suffixes, strconv.Itoa(n))
	}

	out := make([]string, 0, len(suffixes))
	seen := make(map[string]struct{}, len(suffixes))
	for _, suffix := range suffixes {
		candidate := withSuffix(base, suffix)
		if _, dup := seen[candidate]; dup {
			continue
		}
		if !ValidateSlugFormat(candidate) || IsReservedSlug(candidate) {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

// withSuffix joins base and suffix with a hyphen, trimming base so the result
// fits within SlugMaxLength.
func withSuffix(base, suffix string) string {
	room := SlugMaxLength - len(suffix) - 1
	if len(base) > room {
		base = strings.TrimRight(base[:room], "-")
	}
	return base + "-" + suffix
}

// SlugFromNames derives a slug candidate from the partners' names, e.g.
// "Zoë" and "Bob" become "zoe-bob". The result may still be invalid or
// reserved and must go through the normal policy.
func SlugFromNames(partner1, partner2 string) string {
	s := gosimpleslug.Make(strings.TrimSpace(partner1) + " " + strings.TrimSpace(partner2))
	if len(s) > SlugMaxLength {
		s = strings.TrimRight(s[:SlugMaxLength], "-")
	}
	return s
}
