package auth

import (
	"bytes"
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPassword(t *testing.T) {
	hash, salt, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if len(salt) != KeySize {
		t.Fatalf("salt length = %d, want %d", len(salt), KeySize)
	}
	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64", len(hash))
	}
	if !CheckPassword("s3cret", hash, salt) {
		t.Fatalf("expected password check to pass")
	}
	if CheckPassword("wrong", hash, salt) {
		t.Fatalf("expected password check to fail")
	}
}

func TestHashPasswordUsesFreshKey(t *testing.T) {
	h1, s1, err := HashPassword("same")
	if err != nil {
		t.Fatalf("hash 1: %v", err)
	}
	h2, s2, err := HashPassword("same")
	if err != nil {
		t.Fatalf("hash 2: %v", err)
	}
	if bytes.Equal(s1, s2) || bytes.Equal(h1, h2) {
		t.Fatalf("expected distinct keys and hashes for repeated passwords")
	}
}

func TestCheckPasswordRejectsTruncatedHash(t *testing.T) {
	hash, salt, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if CheckPassword("s3cret", hash[:32], salt) {
		t.Fatalf("expected length mismatch to fail")
	}
	if CheckPassword("s3cret", nil, salt) {
		t.Fatalf("expected empty hash to fail")
	}
}

func TestVerifySignature(t *testing.T) {
	key := []byte("sk_test_secret")
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","status":"success"}}`)
	sig := SignatureHex(key, body)

	if !VerifySignature(key, body, sig) {
		t.Fatalf("expected lowercase signature to verify")
	}
	if !VerifySignature(key, body, strings.ToUpper(sig)) {
		t.Fatalf("expected uppercase hex to verify")
	}
	if VerifySignature(key, append(body, ' '), sig) {
		t.Fatalf("expected modified body to fail")
	}
	if VerifySignature([]byte("other"), body, sig) {
		t.Fatalf("expected wrong key to fail")
	}
	if VerifySignature(key, body, "not-hex") {
		t.Fatalf("expected malformed signature to fail")
	}
	if VerifySignature(key, body, "") {
		t.Fatalf("expected empty signature to fail")
	}
}
