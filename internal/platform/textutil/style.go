// Package textutil holds small text shaping helpers shared by the
// presentation surfaces.
package textutil

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// BaseStylesheet is always served to the storefront widget. Merchant
// custom rules are appended after it so they can override any base rule.
const BaseStylesheet = `.eva-gift-wrap{display:flex;align-items:center;gap:.5rem}
.eva-gift-wrap label{cursor:pointer}
.eva-gift-wrap .eva-gift-wrap-fee{font-weight:600}`

// StyleSanitizer strips markup out of merchant supplied CSS before it is
// embedded in storefront pages.
type StyleSanitizer struct {
	policy *bluemonday.Policy
}

// NewStyleSanitizer builds a sanitizer that rejects every HTML element.
func NewStyleSanitizer() *StyleSanitizer {
	return &StyleSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize removes HTML tags and style-breaking sequences from raw CSS.
// The result is plain rule text safe to inline inside a style element.
func (s *StyleSanitizer) Sanitize(raw string) string {
	if s == nil || s.policy == nil {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	// bluemonday entity-escapes characters CSS needs verbatim.
	cleaned = strings.NewReplacer(
		"&gt;", ">",
		"&lt;", "<",
		"&amp;", "&",
		"&#34;", `"`,
		"&#39;", "'",
	).Replace(cleaned)
	// A literal close tag would break out of the inline style element.
	cleaned = strings.ReplaceAll(cleaned, "</style", "")
	cleaned = strings.ReplaceAll(cleaned, "<style", "")
	return strings.TrimSpace(cleaned)
}

// Stylesheet appends the sanitized custom rules to the base stylesheet.
func (s *StyleSanitizer) Stylesheet(custom string) string {
	cleaned := s.Sanitize(custom)
	if cleaned == "" {
		return BaseStylesheet
	}
	return BaseStylesheet + "\n" + cleaned
}
