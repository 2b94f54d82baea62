// Package phone canonicalizes phone numbers to E.164 so the same identity
// always produces the same string, regardless of who typed it or which
// collaborator supplied it. The encrypted-field matcher compares exact
// strings, so both sides must pass through here first.
package phone

import (
	"errors"
	"strings"
)

const (
	minDigits = 8
	maxDigits = 15 // E.164 ceiling
)

var ErrInvalid = errors.New("phone number is not valid")

// NormalizeE164 converts raw input to +<country><national> form.
//
// Accepted inputs: anything already carrying a leading +, an international
// 00-prefixed number, an 11-digit NANP number with leading 1, or a bare
// 10-digit NANP number (assumed +1). Separators and parentheses are dropped.
func NormalizeE164(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalid
	}

	hasPlus := strings.HasPrefix(trimmed, "+")
	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			continue
		}
		switch r {
		case '+', ' ', '-', '.', '(', ')':
			// separator noise
		default:
			return "", ErrInvalid
		}
	}
	d := digits.String()

	switch {
	case hasPlus:
		// already international
	case strings.HasPrefix(d, "00") && len(d) > 2:
		d = d[2:]
	case len(d) == 11 && d[0] == '1':
		// NANP with country code
	case len(d) == 10:
		d = "1" + d
	default:
		return "", ErrInvalid
	}

	if len(d) < minDigits || len(d) > maxDigits || d[0] == '0' {
		return "", ErrInvalid
	}
	return "+" + d, nil
}
