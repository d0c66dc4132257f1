package engine

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidIdentifier marks a table, view, column or alias name that failed
// validation. Identifiers are spelled in code, so a failure is always a
// programming error, never a data problem.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// ValidateIdent rejects any name that cannot be safely interpolated into SQL
// as an identifier: it must start with a letter, continue with letters,
// digits or underscores, and stay within 64 characters.
func ValidateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}
