package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookstore/pkg/domain"
	"bookstore/pkg/paystack"
	"bookstore/pkg/queue"
	"bookstore/pkg/storage"
	"bookstore/pkg/store"
)

// PaymentGateway is the subset of the Paystack API the store needs.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, email string, amount int64, reference string) (string, error)
	VerifyTransaction(ctx context.Context, reference string) (string, error)
}

// TokenIssuer mints and revokes session tokens.
type TokenIssuer interface {
	Issue(u domain.User) (string, error)
	Revoke(ctx context.Context, token string) error
}

// CleanupQueue retries object deletions that failed inline.
type CleanupQueue interface {
	Enqueue(ctx context.Context, key string) (queue.Job, error)
}

// Config holds runtime configuration for the core application.
// Store, Objects and Gateway override the connection settings when set.
type Config struct {
	DatabaseURL string
	Store       store.Store

	Storage storage.MinioConfig
	Objects storage.ObjectStore
	Cleanup CleanupQueue

	Paystack paystack.Config
	Gateway  PaymentGateway
	// WebhookSecret defaults to Paystack.SecretKey.
	WebhookSecret string

	Tokens TokenIssuer
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store         store.Store
	objects       storage.ObjectStore
	cleanup       CleanupQueue
	gateway       PaymentGateway
	tokens        TokenIssuer
	webhookSecret []byte
	now           func() time.Time
}

// New constructs the application, opening the database, bucket and gateway
// clients that were not injected.
func New(cfg Config) (*App, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer required")
	}
	var err error
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	objects := cfg.Objects
	if objects == nil {
		objects, err = storage.NewMinioStore(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}
	gateway := cfg.Gateway
	if gateway == nil {
		gateway, err = paystack.NewClient(cfg.Paystack)
		if err != nil {
			return nil, fmt.Errorf("init paystack client: %w", err)
		}
	}
	secret := cfg.WebhookSecret
	if secret == "" {
		secret = cfg.Paystack.SecretKey
	}
	if secret == "" {
		return nil, errors.New("webhook secret required")
	}
	return &App{
		store:         dataStore,
		objects:       objects,
		cleanup:       cfg.Cleanup,
		gateway:       gateway,
		tokens:        cfg.Tokens,
		webhookSecret: []byte(secret),
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}
