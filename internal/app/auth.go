package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"bookstore/pkg/auth"
	"bookstore/pkg/domain"
	"bookstore/pkg/store"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Register creates a user account with role User.
func (a *App) Register(username, password string) (domain.User, error) {
	username = normalizeEmail(username)
	if !emailPattern.MatchString(username) {
		return domain.User{}, ErrInvalidUsername
	}
	if strings.TrimSpace(password) == "" {
		return domain.User{}, ErrPasswordRequired
	}
	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
		Role:         domain.RoleUser,
	}
	if err := a.store.CreateUser(&user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks credentials and returns a signed session token.
func (a *App) Login(username, password string) (string, domain.User, error) {
	user, ok, err := a.store.GetUserByUsername(normalizeEmail(username))
	if err != nil {
		return "", domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash, user.PasswordSalt) {
		return "", domain.User{}, ErrInvalidCredentials
	}
	token, err := a.tokens.Issue(user)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

// Logout revokes the presented token for the rest of its lifetime.
func (a *App) Logout(ctx context.Context, token string) error {
	return a.tokens.Revoke(ctx, token)
}

// Me returns the stored account behind a principal.
func (a *App) Me(p domain.Principal) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(p.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}
