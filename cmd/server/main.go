package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ctf_zone/internal/api"
	"ctf_zone/internal/app/service"
	"ctf_zone/internal/app/worker"
	"ctf_zone/internal/common/security"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/blob"
	"ctf_zone/internal/platform/captcha"
	"ctf_zone/internal/platform/config"
	"ctf_zone/internal/platform/database"
	"ctf_zone/internal/platform/logger"
	"ctf_zone/internal/platform/mail"
	"ctf_zone/internal/platform/metrics"
	"ctf_zone/internal/platform/queue"
	"ctf_zone/internal/platform/ratelimit"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Info("Configuration loaded.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Database
	database.Connect()
	defer database.Close()
	if err := database.Migrate(ctx, database.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 3. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()

	// 4. Initialize tokens
	security.InitJWT(cfg.JWTKey, cfg.JWTExp)
	tokenOpts := []security.TokenOption{security.WithTTL(cfg.TokenTTL)}
	if cfg.TokenSingleUse {
		tokenOpts = append(tokenOpts, security.WithSpentStore(security.NewRedisSpentStore(queue.RDB, "")))
	}
	tokens, err := security.NewTokenService(cfg.TokenSecret, tokenOpts...)
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}

	// 5. Initialize content store
	store, closeStore, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s content store: %v", cfg.BlobBackend, err)
	}
	defer closeStore()

	// 6. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	announcementRepo := repository.NewPgAnnouncementRepository(database.DB)

	// 7. Initialize Services
	m := metrics.New()
	var verifier captcha.Verifier = captcha.Disabled{}
	if cfg.UseCaptcha {
		verifier = captcha.NewHCaptcha("")
	}
	limiter := ratelimit.New(queue.RDB, "ctf:ratelimit:submit:", cfg.SubmitRatePerSec, cfg.SubmitBurst)
	scoreboard := service.NewScoreboardCache(queue.RDB, cfg.ScoreboardCacheTTL, m)
	mailService := service.NewMailService(queue.RDB, cfg.MailQueueName, cfg.MailDefaultSender)

	services := api.Services{
		Auth: service.NewAuthService(userRepo, tokens, mailService, verifier, m, service.AuthConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			ClubName:      cfg.ClubName,
			UseCaptcha:    cfg.UseCaptcha,
			CaptchaSecret: cfg.HCaptchaSecret,
			CaptchaSite:   cfg.HCaptchaSite,
		}),
		Problem:      service.NewProblemService(database.DB, problemRepo, submissionRepo, store),
		Contest:      service.NewContestService(database.DB, contestRepo, submissionRepo, store, scoreboard),
		Scoring:      service.NewScoringService(database.DB, problemRepo, contestRepo, submissionRepo, limiter, scoreboard, m),
		Export:       service.NewExportService(database.DB, problemRepo, contestRepo, submissionRepo, store),
		Admin:        service.NewAdminService(userRepo, submissionRepo),
		Announcement: service.NewAnnouncementService(announcementRepo, store),
		Maintenance:  service.NewMaintenanceService(),
	}

	// 8. Initialize background workers
	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
	})
	mailWorker := worker.NewMailWorker(queue.RDB, mailService, sender, cfg.MailMaxAttempts, m)
	janitor := worker.NewJanitor(queue.RDB, userRepo, worker.JanitorConfig{
		Schedule: cfg.JanitorSchedule,
		LockKey:  cfg.JanitorLockKey,
		LockTTL:  cfg.JanitorLockTTL,
		MaxAge:   tokens.TTL(),
	}, m)

	// 9. Initialize Router & HTTP Server
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      api.NewRouter(services, userRepo, m),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.APIPort, err)
		}
		return nil
	})
	g.Go(func() error { return mailWorker.Start(gctx) })
	g.Go(func() error { return janitor.Start(gctx) })

	// 10. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
	log.Info("Server and workers stopped gracefully.")
}

// openBlobStore builds the configured backend behind an LRU read cache.
func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, func(), error) {
	var (
		backend blob.Store
		closeFn = func() {}
	)
	switch cfg.BlobBackend {
	case "bolt", "":
		bolt, err := blob.NewBoltStore(cfg.BlobPath)
		if err != nil {
			return nil, nil, err
		}
		backend = bolt
		closeFn = func() {
			if err := bolt.Close(); err != nil {
				log.WithError(err).Error("failed to close content store")
			}
		}
	case "s3":
		s3, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		backend = s3
	case "b2":
		b2, err := blob.NewB2Store(ctx, cfg.B2AccountID, cfg.B2AppKey, cfg.B2Bucket)
		if err != nil {
			return nil, nil, err
		}
		backend = b2
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}

	if cfg.BlobCacheSize > 0 {
		return blob.NewCachedStore(backend, cfg.BlobCacheSize, cfg.BlobCacheTTL), closeFn, nil
	}
	return backend, closeFn, nil
}
