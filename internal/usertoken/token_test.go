package usertoken

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"bookstore/pkg/domain"
	"bookstore/pkg/store"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, revoker store.TokenRevoker) *Manager {
	t.Helper()
	m, err := New(Config{
		Key:              testKey,
		Issuer:           "bookstore",
		Audience:         "bookstore-web",
		ExpiresInMinutes: 60,
		Revoker:          revoker,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewRequiresConfiguration(t *testing.T) {
	base := Config{Key: testKey, Issuer: "i", Audience: "a", ExpiresInMinutes: 5}
	cases := map[string]func(c *Config){
		"missing key":      func(c *Config) { c.Key = "" },
		"short key":        func(c *Config) { c.Key = "short" },
		"missing issuer":   func(c *Config) { c.Issuer = "" },
		"missing audience": func(c *Config) { c.Audience = " " },
		"missing expiry":   func(c *Config) { c.ExpiresInMinutes = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Fatalf("expected config error")
			}
		})
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	token, err := m.Issue(domain.User{ID: 42, Username: "ada@example.com", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != 42 || p.Username != "ada@example.com" || p.Role != domain.RoleUser {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := newTestManager(t, nil)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := m.Issue(domain.User{ID: 1, Username: "a@example.com", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.now = time.Now
	if _, err := m.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestVerifyRejectsWrongIssuerAudienceAndKey(t *testing.T) {
	m := newTestManager(t, nil)
	sign := func(claims Claims, key string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	valid := Claims{
		Name:   "a@example.com",
		UserID: "1",
		Role:   "User",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "bookstore",
			Audience:  jwt.ClaimStrings{"bookstore-web"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := valid
	wrongAudience.Audience = jwt.ClaimStrings{"other"}
	unknownRole := valid
	unknownRole.Role = "Superuser"
	badUID := valid
	badUID.UserID = "abc"

	tokens := map[string]string{
		"wrong issuer":   sign(wrongIssuer, testKey),
		"wrong audience": sign(wrongAudience, testKey),
		"wrong key":      sign(valid, strings.Repeat("x", 32)),
		"unknown role":   sign(unknownRole, testKey),
		"bad uid":        sign(badUID, testKey),
		"garbage":        "not-a-jwt",
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Verify(context.Background(), token); err == nil {
				t.Fatalf("expected verify to fail")
			}
		})
	}

	if _, err := m.Verify(context.Background(), sign(valid, testKey)); err != nil {
		t.Fatalf("expected control token to verify, got %v", err)
	}
}

func TestVerifyNormalizesRoleCase(t *testing.T) {
	m := newTestManager(t, nil)
	token, err := m.Issue(domain.User{ID: 7, Username: "root@example.com", Role: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !p.IsAdmin() {
		t.Fatalf("expected admin principal, got %+v", p)
	}
}

func TestRevokeBlocksToken(t *testing.T) {
	revoker := store.NewMemoryTokenRevoker()
	m := newTestManager(t, revoker)
	ctx := context.Background()
	token, err := m.Issue(domain.User{ID: 3, Username: "c@example.com", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := m.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Verify(ctx, token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}

	other, err := m.Issue(domain.User{ID: 3, Username: "c@example.com", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue other: %v", err)
	}
	if _, err := m.Verify(ctx, other); err != nil {
		t.Fatalf("expected fresh token to verify, got %v", err)
	}
}
