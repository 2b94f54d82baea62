package phone_test

import (
	"testing"

	"textline/internal/phone"
)

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"+16475551234":       "+16475551234",
		"+1 (647) 555-1234":  "+16475551234",
		"6475551234":         "+16475551234",
		"16475551234":        "+16475551234",
		"647.555.1234":       "+16475551234",
		"004917612345678":    "+4917612345678",
		"+49 176 12345678":   "+4917612345678",
		" +16475551234 ":     "+16475551234",
	}
	for in, want := range cases {
		got, err := phone.NormalizeE164(in)
		if err != nil {
			t.Fatalf("NormalizeE164(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeE164_Rejects(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"555-1234",            // too short, no country hint
		"not a number",
		"+0123456789",         // leading zero country code
		"call me maybe 647",
		"123456789012345678",  // over E.164 ceiling
	}
	for _, in := range cases {
		if got, err := phone.NormalizeE164(in); err == nil {
			t.Fatalf("NormalizeE164(%q) = %q, want error", in, got)
		}
	}
}
