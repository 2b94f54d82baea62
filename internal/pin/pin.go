// Package pin generates short shared-possession codes for subscribers.
//
// PINs gate identity actions, so the source of randomness is crypto/rand,
// never math/rand. PINs are stored in the clear: they are tokens, not PII.
package pin

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Length is the fixed PIN length in characters.
const Length = 6

// Generate returns a 6-character uppercase base-36 code, zero-padded on the
// left. Collisions are possible at this length; uniqueness among active PINs
// is enforced by the store's unique index, and the caller regenerates on
// conflict.
func Generate() (string, error) {
	var raw [4]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("pin: %w", err)
	}
	n := binary.BigEndian.Uint32(raw[:])
	code := strings.ToUpper(strconv.FormatUint(uint64(n), 36))
	if len(code) > Length {
		code = code[len(code)-Length:]
	}
	if len(code) < Length {
		code = strings.Repeat("0", Length-len(code)) + code
	}
	return code, nil
}

// Valid reports whether input has the shape of a generated PIN. Used to
// reject junk before the rate-limited lookup path is consulted.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
