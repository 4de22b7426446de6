package schema

import (
	"strings"
	"unicode"
)

func isModelRune(r rune) bool {
	return r == '.' || r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isUserRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
}

// NormalizeModelID validates and normalizes a model identifier.
// Allowed characters: A-Z, a-z, 0-9, '.', '_', '-'.
func NormalizeModelID(model string) (ModelID, error) {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" || strings.ContainsFunc(trimmed, func(r rune) bool { return !isModelRune(r) }) {
		return "", ErrInvalidModel
	}
	return ModelID(trimmed), nil
}

// ValidateUserID ensures a user id matches [a-z0-9._-] exactly, with
// no normalization applied. Usernames double as state file names and
// home directory names, so the charset stays strict.
func ValidateUserID(userID UserID) error {
	raw := string(userID)
	if raw == "" || strings.TrimSpace(raw) != raw {
		return ErrInvalidUser
	}
	if strings.ContainsFunc(raw, func(r rune) bool { return !isUserRune(r) }) {
		return ErrInvalidUser
	}
	return nil
}
