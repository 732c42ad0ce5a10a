package memory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPathSegment means an identifier destined for a storage key
// contained separator or traversal characters. Operations fail loudly
// on this; silent sanitization risks key collisions across users.
var ErrInvalidPathSegment = errors.New("invalid path segment")

func validateSegment(segment string) error {
	if segment == "" ||
		strings.Contains(segment, "/") ||
		strings.Contains(segment, "\\") ||
		strings.Contains(segment, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidPathSegment, segment)
	}
	return nil
}

func userPath(chatID, file string) (string, error) {
	if err := validateSegment(chatID); err != nil {
		return "", err
	}
	return fmt.Sprintf("users/%s/%s", chatID, file), nil
}

func personPath(chatID, slug string) (string, error) {
	if err := validateSegment(chatID); err != nil {
		return "", err
	}
	if err := validateSegment(slug); err != nil {
		return "", err
	}
	return fmt.Sprintf("users/%s/people/%s.json", chatID, slug), nil
}

func peoplePrefix(chatID string) (string, error) {
	if err := validateSegment(chatID); err != nil {
		return "", err
	}
	return fmt.Sprintf("users/%s/people/", chatID), nil
}

func expansionPath(chatID, month string) (string, error) {
	if err := validateSegment(chatID); err != nil {
		return "", err
	}
	if err := validateSegment(month); err != nil {
		return "", err
	}
	return fmt.Sprintf("users/%s/expansion/%s.json", chatID, month), nil
}

// ArchivePath keys a housekeeping snapshot of expired sessions by the
// run date ("2025-08-31"). The date is always produced by time.Format,
// so no segment validation is needed.
func ArchivePath(date string) string {
	return fmt.Sprintf("archives/sessions_%s.json", date)
}
