// Package locale picks the language for outgoing notifications.
package locale

import (
	"golang.org/x/text/language"
)

// Default is used when the request names no supported language.
const Default = "en"

var supported = []language.Tag{language.English, language.French, language.Spanish}

// FromAcceptLanguage returns the first supported base language in the
// header, in quality order. Ties keep header order. Invalid or empty
// headers yield Default.
func FromAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return Default
	}
	for _, tag := range tags {
		base, _ := tag.Base()
		for _, s := range supported {
			if sb, _ := s.Base(); sb == base {
				return base.String()
			}
		}
	}
	return Default
}
