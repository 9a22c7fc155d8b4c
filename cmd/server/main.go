package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/cropcare/backend/internal/audit"
	"github.com/ayush/cropcare/backend/internal/auth"
	"github.com/ayush/cropcare/backend/internal/config"
	"github.com/ayush/cropcare/backend/internal/mailer"
	"github.com/ayush/cropcare/backend/internal/profile"
	"github.com/ayush/cropcare/backend/internal/ratelimit"
	"github.com/ayush/cropcare/backend/internal/share"
	"github.com/ayush/cropcare/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(startCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer mongoClient.Disconnect(context.Background())
	if err := mongoClient.Ping(startCtx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.EnsureIndexes(startCtx); err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(startCtx, store.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer rdb.Close()
	revocations := auth.NewRevocationStore(rdb)

	var limiter ratelimit.Limiter
	switch cfg.RateLimitStore {
	case "memory":
		mem := ratelimit.NewMemoryLimiter()
		go mem.StartCleanupWorker(ctx, time.Minute)
		limiter = mem
	default:
		limiter = ratelimit.NewRedisLimiter(rdb)
	}

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		startCtx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		return fmt.Errorf("minio connect: %w", err)
	}

	// ── PostgreSQL (optional account event log) ─────────────
	var (
		events   audit.Recorder = audit.NewLogRecorder(log)
		pgEvents *store.PostgresEventStore
	)
	if cfg.PostgresDSN != "" {
		pool, err := store.NewPostgresPool(startCtx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer pool.Close()
		pgEvents = store.NewPostgresEventStore(pool)
		if err := pgEvents.Migrate(startCtx); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
		events = pgEvents
	}

	// ── Mail ─────────────────────────────────────────────────
	sender, err := newSender(cfg, log)
	if err != nil {
		return fmt.Errorf("mail sender: %w", err)
	}
	mail := mailer.New(sender, cfg.EmailFrom, cfg.AppBaseURL, cfg.EmailRatePerSec, log)

	// ── Handlers ─────────────────────────────────────────────
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
	authSvc := auth.NewService(mongoStore, mail, tokens, events, log)
	authHandler := auth.NewHandler(authSvc, tokens, revocations, cfg.IsProduction(), log)
	if pgEvents != nil {
		authHandler.WithActivity(pgEvents)
	}

	r := newRouter(routerDeps{
		cfg:         cfg,
		log:         log,
		limiter:     limiter,
		tokens:      tokens,
		revocations: revocations,
		auth:        authHandler,
		profile:     profile.NewHandler(mongoStore, minioStore, log),
		share:       share.NewHandler(mongoStore, cfg.AppBaseURL, log),
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("backend listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	return srv.Shutdown(shutCtx)
}

func newSender(cfg *config.Config, log *slog.Logger) (mailer.Sender, error) {
	switch cfg.EmailProvider {
	case "smtp":
		return mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
		})
	case "resend":
		return mailer.NewResendSender(cfg.ResendAPIURL, cfg.ResendAPIKey)
	default:
		return mailer.NewLogSender(log), nil
	}
}

// newLogger writes JSON in production and text otherwise.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
