package schema

import (
	"strings"
	"unicode"
)

// ValidateSessionID ensures a session id matches [a-z0-9._-] with no
// normalization. Session ids name persisted state files, so the charset is
// deliberately narrow.
func ValidateSessionID(session SessionID) error {
	raw := string(session)
	if raw == "" {
		return ErrInvalidSession
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidSession
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidSession
	}
	return nil
}

// NormalizeProviderName validates and normalizes a provider name.
// Allowed characters: A-Z, a-z, 0-9, '.', '_', '-'.
func NormalizeProviderName(name string) (ProviderName, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrInvalidProvider
	}
	for _, r := range trimmed {
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return "", ErrInvalidProvider
	}
	return ProviderName(trimmed), nil
}
