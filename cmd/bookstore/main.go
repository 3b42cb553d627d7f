package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"bookstore/internal/app"
	"bookstore/internal/config"
	"bookstore/internal/ratelimit"
	"bookstore/internal/security"
	"bookstore/internal/server"
	"bookstore/internal/usertoken"
	"bookstore/internal/util"
	"bookstore/pkg/paystack"
	"bookstore/pkg/queue"
	"bookstore/pkg/storage"
	"bookstore/pkg/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, cfg.LogFormat)
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer redisClient.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to redis: %v", err)
	}
	cancel()

	tokens, err := usertoken.New(usertoken.Config{
		Key:              cfg.JWTKey,
		Issuer:           cfg.JWTIssuer,
		Audience:         cfg.JWTAudience,
		ExpiresInMinutes: cfg.JWTExpiresInMinutes,
		Leeway:           jwtLeeway,
		Revoker:          store.NewRedisTokenRevoker(redisClient, ""),
	})
	if err != nil {
		log.Fatalf("failed to init token manager: %v", err)
	}

	var limiter server.RateLimiter
	if cfg.AuthRateLimitPerMinute > 0 {
		limiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "bookstore:ratelimit:auth", cfg.AuthRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	alerter, err := security.NewAuditAlerter(redisClient, "bookstore:alerts")
	if err != nil {
		log.Fatalf("failed to init audit alerter: %v", err)
	}

	objects, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:      cfg.StorageEndpoint,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		Bucket:        cfg.StorageBucket,
		Region:        cfg.StorageRegion,
		UseSSL:        cfg.StorageUseSSL,
		PublicBaseURL: cfg.StoragePublicBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}
	cleanup, err := queue.NewRedisQueue(redisClient, queue.Config{
		Stream: "bookstore:cleanup",
		Group:  "object-cleanup",
	})
	if err != nil {
		log.Fatalf("failed to init cleanup queue: %v", err)
	}
	workerCtx, stopWorkers := context.WithCancel(util.ContextWithLogger(context.Background(), logger))
	defer stopWorkers()
	cleanup.Start(workerCtx, 1, func(ctx context.Context, job queue.Job) error {
		return objects.Delete(ctx, job.Key)
	})

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Objects:     objects,
		Cleanup:     cleanup,
		Paystack: paystack.Config{
			BaseURL:     cfg.PaystackBaseURL,
			SecretKey:   cfg.PaystackSecretKey,
			CallbackURL: cfg.PaystackCallbackURL,
		},
		Tokens: tokens,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:               appCore,
		Tokens:            tokens,
		Limiter:           limiter,
		Alerter:           alerter,
		TrustedProxies:    trusted,
		AllowedOrigins:    cfg.AllowedOrigins,
		PaymentSuccessURL: cfg.PaymentSuccessURL,
		PaymentFailureURL: cfg.PaymentFailureURL,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("bookstore server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
