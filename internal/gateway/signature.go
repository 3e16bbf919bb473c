package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// ComputeSignature derives the notification signature the gateway attaches to
// callbacks: hex(sha512(orderNumber || statusCode || grossAmount || serverKey)).
func ComputeSignature(orderNumber, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderNumber + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature recomputes the expected signature and compares it in
// constant time. This is the only authentication on the notification path.
func VerifySignature(orderNumber, statusCode, grossAmount, serverKey, signature string) bool {
	if signature == "" || serverKey == "" {
		return false
	}
	expected := ComputeSignature(orderNumber, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
