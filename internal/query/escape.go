package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Escape doubles every single quote so s can sit inside a single-quoted SQL literal.
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Quote returns s as a complete single-quoted SQL literal.
func Quote(s string) string {
	return "'" + Escape(s) + "'"
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateIdentifier checks that name is a plain, optionally project-qualified, identifier.
// Table and column names come from configuration and are never escaped, only validated.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
