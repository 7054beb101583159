package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload computes the hex HMAC-SHA256 signature the callback endpoint
// expects in X-Callback-Signature.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the body under secret.
// Comparison is constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
