// Package sqlutil provides PostgreSQL identifier helpers for lookupbench.
package sqlutil

import (
	"regexp"
	"strings"
)

// MaxIdentifierLength is PostgreSQL's NAMEDATALEN-1; longer names are truncated by the server.
const MaxIdentifierLength = 63

// QuoteIdentifier quotes a PostgreSQL identifier with double quotes,
// doubling any embedded double quote.
// Example: "overrides" -> "\"overrides\""
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes each dot-separated part of a possibly schema-qualified name.
// Example: "public.overrides" -> "\"public\".\"overrides\""
func QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// Restricted to unquoted-identifier characters so names never need case folding rules.
var validIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether name is a plain identifier of acceptable length.
func IsValidIdentifier(name string) bool {
	return len(name) <= MaxIdentifierLength && validIdentifierRegex.MatchString(name)
}

// IsValidQualified accepts "name" or "schema.name" where every part is valid.
func IsValidQualified(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !IsValidIdentifier(p) {
			return false
		}
	}
	return true
}

// QuoteIdentifierSafe quotes name after validating it.
func QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// QuoteQualifiedSafe quotes a possibly schema-qualified name after validating it.
func QuoteQualifiedSafe(name string) (string, error) {
	if !IsValidQualified(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteQualified(name), nil
}

// SplitQualified returns the schema (empty when unqualified) and relation name.
func SplitQualified(name string) (schema, relation string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must start with a letter or underscore and contain only alphanumeric characters and underscores)"
}
