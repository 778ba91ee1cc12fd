package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Limits matching Snowflake identifier constraints.
const (
	MaxIdentLen = 255
)

var (
	// stagePathRe matches a relative object path below a stage.
	stagePathRe = regexp.MustCompile(`^[A-Za-z0-9._=/-]+$`)
)

// QuoteIdent returns s as a double-quoted identifier with embedded quotes doubled.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ValidateIdent checks that a configured schema, table, stage or column name
// is usable as an identifier.
func ValidateIdent(kind, s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if len(s) > MaxIdentLen {
		return fmt.Errorf("%s name %q exceeds %d characters", kind, s, MaxIdentLen)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s name %q contains control characters", kind, s)
		}
	}
	return nil
}

// ValidateField checks a source-file field name used in a $1:"field" path.
func ValidateField(s string) error {
	if err := ValidateIdent("field", s); err != nil {
		return err
	}
	if strings.ContainsRune(s, '"') {
		return fmt.Errorf("field name %q contains a double quote", s)
	}
	return nil
}

// ValidateStagePath checks the optional file path below a stage.
func ValidateStagePath(p string) error {
	if p == "" {
		return nil
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "..") || !stagePathRe.MatchString(p) {
		return fmt.Errorf("stage path %q contains invalid characters", p)
	}
	return nil
}

// Upper uppercases every name, the way unquoted identifiers resolve in the
// warehouse catalog.
func Upper(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToUpper(n)
	}
	return out
}
