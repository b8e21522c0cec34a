package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature checks an HMAC-SHA256 of payload keyed by secret. Shopify
// sends the digest base64-encoded, other providers hex, so both are accepted.
// A "sha256=" prefix is stripped.
func VerifySignature(secret string, payload []byte, signature string) error {
	sig := strings.TrimSpace(signature)
	sig = strings.TrimPrefix(sig, "sha256=")
	if secret == "" || sig == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := mac.Sum(nil)

	if got, err := hex.DecodeString(sig); err == nil && hmac.Equal(got, expected) {
		return nil
	}
	if got, err := base64.StdEncoding.DecodeString(sig); err == nil && hmac.Equal(got, expected) {
		return nil
	}
	return ErrInvalidSignature
}

// Sign returns the hex digest VerifySignature accepts.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
