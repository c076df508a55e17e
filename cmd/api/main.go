package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/background"
	"github.com/BradenHooton/sentinel/internal/config"
	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/face"
	"github.com/BradenHooton/sentinel/internal/handlers"
	middlewareCustom "github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/repositories"
	"github.com/BradenHooton/sentinel/internal/repositories/memory"
	"github.com/BradenHooton/sentinel/internal/routes"
	"github.com/BradenHooton/sentinel/internal/services"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// stores bundles the persistence backends selected by STORE_DRIVER
type stores struct {
	accounts      services.IdentityStore
	requests      services.AccessRequestStore
	events        services.AuditEventStore
	notifications services.NotificationStore
	revocations   interface {
		services.TokenRevocationStore
		background.ExpiredTokenPurger
	}
	healthCheck func(ctx context.Context) error
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_driver", cfg.Database.Driver),
	)

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.close()

	// Collaborators
	hasher := pkgauth.NewHasher(cfg.Admission.BcryptCost)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)
	totpManager, err := auth.NewTOTPManager(cfg.TwoFactor.EncryptionKey, cfg.TwoFactor.Issuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}
	clock := services.SystemClock{}

	// Services
	auditService := services.NewAuditService(st.events, st.notifications, pkglogger.NewAuditLogger(logger), logger, clock)

	var dispatcher *background.NotificationDispatcher
	if cfg.Notifications.Enabled() {
		mailer, err := services.NewAWSSESMailer(context.Background(), cfg.Notifications.AWSRegion, cfg.Notifications.FromAddress, cfg.Notifications.Recipients, logger)
		if err != nil {
			logger.Error("failed to initialize SES mailer", slog.Any("error", err))
			os.Exit(1)
		}
		dispatcher = background.NewNotificationDispatcher(mailer, logger, cfg.Notifications.QueueSize, cfg.Notifications.SendRate)
		auditService.SetNotificationSink(dispatcher)
		logger.Info("operator e-mail notifications enabled", slog.Int("recipients", len(cfg.Notifications.Recipients)))
	}

	accountService := services.NewAccountService(st.accounts, hasher, auditService, logger, clock, services.AccountPolicy{
		RootEmail:          cfg.Admission.RootEmail,
		RootPassword:       cfg.Admission.RootPassword,
		DefaultMaxAttempts: cfg.Admission.DefaultMaxAttempts,
	})
	admissionService := services.NewAdmissionService(services.AdmissionDeps{
		Accounts:    st.accounts,
		Revocations: st.revocations,
		Root:        accountService,
		Hasher:      hasher,
		Matcher:     face.NewMatcher(cfg.Admission.FaceMatchThreshold),
		Totp:        totpManager,
		Sealer:      totpManager,
		Sessions:    tokenManager,
		Audit:       auditService,
		Logger:      logger,
		Clock:       clock,
	}, services.AdmissionPolicy{
		Location:              cfg.Admission.Location,
		LockoutDuration:       cfg.Admission.LockoutDuration,
		MaxCredentialFailures: cfg.Admission.MaxCredentialFailures,
		AllowedClientOS:       cfg.Admission.AllowedClientOS,
	})
	twoFactorService := services.NewTwoFactorService(st.accounts, totpManager, totpManager, auth.NewQRCodeEncoder(256), auditService, logger, clock, cfg.TwoFactor.EnrollmentTTL)
	accessRequestService := services.NewAccessRequestService(st.requests, st.accounts, auditService, logger, clock)
	overviewService := services.NewOverviewService(st.accounts, st.requests, st.events, clock, cfg.Admission.Location)

	// Root administrator bootstrap
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := accountService.EnsureRootAdmin(ctx); err != nil {
		logger.Error("failed to ensure root administrator", slog.Any("error", err))
		cancel()
		os.Exit(1)
	}
	cancel()

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Handlers{
		Admission:      handlers.NewAdmissionHandler(admissionService, logger),
		TwoFactor:      handlers.NewTwoFactorHandler(twoFactorService, logger),
		AccessRequests: handlers.NewAccessRequestHandler(accessRequestService, logger),
		Accounts:       handlers.NewAccountHandler(accountService, logger),
		Audit:          handlers.NewAuditHandler(auditService, overviewService, logger),
	}, routes.Security{
		TokenManager: tokenManager,
		Revocations:  st.revocations,
		Accounts:     st.accounts,
		RateLimit: middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Server.LoginRateLimitRPM,
			IPConfig:          ipConfig,
		},
		Logger: logger,
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.healthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "store": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "store": "up"})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	cleanupManager := background.NewCleanupManager(st.revocations, logger, time.Hour)
	go cleanupManager.Start(workerCtx)
	if dispatcher != nil {
		go dispatcher.Start(workerCtx)
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	cleanupManager.Stop()
	if dispatcher != nil {
		dispatcher.Stop()
	}
	workerCancel()

	logger.Info("server stopped gracefully")
}

func openStores(cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return &stores{
			accounts:      memory.NewAccountStore(),
			requests:      memory.NewAccessRequestStore(),
			events:        memory.NewAuditEventStore(),
			notifications: memory.NewNotificationStore(),
			revocations:   memory.NewTokenRevocationStore(),
			healthCheck:   func(context.Context) error { return nil },
			close:         func() {},
		}, nil
	}

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := database.Migrate(ctx, cfg.Database.DSN()); err != nil {
			return nil, err
		}
		logger.Info("database migrations applied")
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return &stores{
		accounts:      repositories.NewAccountRepository(db),
		requests:      repositories.NewAccessRequestRepository(db),
		events:        repositories.NewAuditEventRepository(db),
		notifications: repositories.NewNotificationRepository(db),
		revocations:   repositories.NewTokenRevocationRepository(db),
		healthCheck:   db.HealthCheck,
		close:         db.Close,
	}, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
