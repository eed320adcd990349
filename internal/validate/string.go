// Package validate provides input validation for search request
// parameters. All text reaching the storage layer goes through
// parameterized queries; these checks bound sizes and shapes so
// oversized or malformed input is rejected at the edge.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// Length bounds for search parameters.
const (
	MaxQueryLength  = 500
	MaxFilterLength = 200
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if
// validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count.
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}
	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// SearchQuery validates the free-text q parameter. Empty is fine (a
// filter-only search); scientific queries legitimately contain words
// like "from" or "select", so content is unrestricted and only length
// is bounded.
func SearchQuery(q string) (string, error) {
	return String(q, StringConstraints{
		MaxLength:  MaxQueryLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// FilterValue validates a structured filter parameter (publisher,
// license, format, platform).
func FilterValue(v string) (string, error) {
	return String(v, StringConstraints{
		MaxLength:  MaxFilterLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}
