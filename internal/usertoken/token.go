package usertoken

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bookstore/pkg/domain"
	"bookstore/pkg/store"
)

// MinKeyBytes is the shortest accepted HS256 signing key.
const MinKeyBytes = 32

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked")
)

// Config configures user access-token issuing and verification.
type Config struct {
	Key              string
	Issuer           string
	Audience         string
	ExpiresInMinutes int
	Leeway           time.Duration
	Revoker          store.TokenRevoker
}

// Claims is the JWT payload carried by user access tokens.
type Claims struct {
	Name   string `json:"name"`
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 user access tokens.
type Manager struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
	revoker  store.TokenRevoker
	now      func() time.Time
}

// New validates cfg and builds a Manager. Missing settings are configuration errors.
func New(cfg Config) (*Manager, error) {
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		return nil, errors.New("usertoken: signing key is required")
	}
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("usertoken: signing key must be at least %d bytes", MinKeyBytes)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errors.New("usertoken: issuer is required")
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, errors.New("usertoken: audience is required")
	}
	if cfg.ExpiresInMinutes <= 0 {
		return nil, errors.New("usertoken: expiry minutes must be positive")
	}
	leeway := cfg.Leeway
	if leeway < 0 {
		leeway = 0
	}
	return &Manager{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		ttl:      time.Duration(cfg.ExpiresInMinutes) * time.Minute,
		leeway:   leeway,
		revoker:  cfg.Revoker,
		now:      time.Now,
	}, nil
}

// Issue signs a token for u that expires after the configured lifetime.
func (m *Manager) Issue(u domain.User) (string, error) {
	now := m.now()
	claims := Claims{
		Name:   u.Username,
		UserID: strconv.FormatUint(uint64(u.ID), 10),
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience, expiry, and revocation,
// then maps the claims onto a Principal.
func (m *Manager) Verify(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := m.parse(token)
	if err != nil {
		return domain.Principal{}, err
	}
	if m.revoker != nil && claims.ID != "" {
		revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return domain.Principal{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return domain.Principal{}, ErrRevoked
		}
	}
	id, err := strconv.ParseUint(claims.UserID, 10, 0)
	if err != nil || id == 0 {
		return domain.Principal{}, fmt.Errorf("%w: bad uid claim", ErrInvalidToken)
	}
	role, ok := domain.ParseUserRole(claims.Role)
	if !ok {
		return domain.Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return domain.Principal{UserID: uint(id), Username: claims.Name, Role: role}, nil
}

// Revoke blocks further use of token until it would have expired.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if m.revoker == nil {
		return nil
	}
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Sub(m.now())+m.leeway)
}

func (m *Manager) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
