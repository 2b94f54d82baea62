// Package webhook verifies that inbound SMS callbacks genuinely originated
// from the messaging provider before any other handling happens.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries the provider's detached HMAC over the request.
const SignatureHeader = "X-Twilio-Signature"

// Validator checks webhook signatures against the account's shared auth token.
type Validator struct {
	authToken []byte
}

func NewValidator(authToken string) *Validator {
	return &Validator{authToken: []byte(authToken)}
}

// ValidateBody verifies a raw URL-form-encoded body against the claimed
// signature. It returns false, never an error: a missing signature, an
// unparseable body, and a mismatched MAC are all the same outcome to the
// caller, which must reject the request without touching storage and
// without explaining why.
func (v *Validator) ValidateBody(requestURL, rawBody, claimedSignature string) bool {
	if claimedSignature == "" {
		return false
	}
	params, err := url.ParseQuery(rawBody)
	if err != nil {
		return false
	}
	return v.Validate(requestURL, params, claimedSignature)
}

// Validate verifies decoded form parameters against the claimed signature
// using a constant-time comparison.
func (v *Validator) Validate(requestURL string, params url.Values, claimedSignature string) bool {
	if claimedSignature == "" {
		return false
	}
	expected := v.Sign(requestURL, params)
	return hmac.Equal([]byte(expected), []byte(claimedSignature))
}

// Sign computes the base64 HMAC-SHA1 signature over the canonical string for
// the given URL and form parameters. Exposed so tests and outbound callback
// registration can produce valid signatures.
func (v *Validator) Sign(requestURL string, params url.Values) string {
	mac := hmac.New(sha1.New, v.authToken)
	mac.Write([]byte(canonical(requestURL, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// canonical builds the exact byte string the signature covers: the full
// request URL followed by every distinct parameter key in code-point order,
// each immediately followed by its first value.
func canonical(requestURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	return b.String()
}
