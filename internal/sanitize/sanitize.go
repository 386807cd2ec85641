package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips markup from free-text fields before they are persisted
// or compared. The strict policy removes every tag and keeps only the text
// content, so "<script>x</script>Buy milk" comes back as "Buy milk".
type Sanitizer struct {
	policy *bluemonday.Policy
}

func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean sanitizes s and trims surrounding whitespace.
func (s *Sanitizer) Clean(in string) string {
	return strings.TrimSpace(s.policy.Sanitize(in))
}

// IsEmpty reports whether s has no visible content left after cleaning.
func (s *Sanitizer) IsEmpty(in string) bool {
	return s.Clean(in) == ""
}
