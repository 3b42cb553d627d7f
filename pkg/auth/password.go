package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySize is the length of the random per-user key that doubles as the salt.
const KeySize = 128

// HashPassword generates a fresh key and returns HMAC-SHA512(key, password) with that key.
func HashPassword(password string) (hash, salt []byte, err error) {
	salt = make([]byte, KeySize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("generate password key: %w", err)
	}
	return Sign(salt, []byte(password)), salt, nil
}

// CheckPassword recomputes the keyed hash and compares it in constant time.
func CheckPassword(password string, hash, salt []byte) bool {
	if len(hash) == 0 || len(salt) == 0 {
		return false
	}
	return hmac.Equal(Sign(salt, []byte(password)), hash)
}

// Sign returns HMAC-SHA512 of payload keyed with key.
func Sign(key, payload []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// VerifySignature checks a hex-encoded HMAC-SHA512 signature over payload.
// Hex decoding is case-insensitive; anything undecodable is a mismatch.
func VerifySignature(key, payload []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha512.Size {
		return false
	}
	return hmac.Equal(Sign(key, payload), got)
}

// SignatureHex is the lowercase hex form of Sign, as sent by the payment gateway.
func SignatureHex(key, payload []byte) string {
	return hex.EncodeToString(Sign(key, payload))
}
