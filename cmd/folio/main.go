// Package main is the entry point for the folio server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/gate"
	"folio/internal/handlers"
	"folio/internal/identity"
	"folio/internal/interact"
	"folio/internal/live"
	"folio/internal/mail"
	"folio/internal/middleware"
	"folio/internal/render"
	"folio/internal/router"
	"folio/internal/session"
	"folio/internal/storage"
	"folio/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables (and .env if present).
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"admin_configured", cfg.HasAdmin(),
	)
	if !cfg.HasAdmin() {
		slog.Warn("no ADMIN_USER_ID or ADMIN_EMAIL set; the admin panel is unreachable")
	}

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed sample content in development mode.
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey for sessions, the render cache and change events.
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	admin := gate.AdminIdentity{UserID: cfg.AdminUserID, Email: identity.NormalizeEmail(cfg.AdminEmail)}

	renderer, err := render.New(cfg.IsDev(), admin)
	if err != nil {
		slog.Error("failed to parse templates", "error", err)
		os.Exit(1)
	}

	// Stores.
	userStore := store.NewUserStore(db)
	postStore := store.NewPostStore(db)
	projectStore := store.NewProjectStore(db)
	skillStore := store.NewSkillStore(db)
	settingStore := store.NewSettingStore(db)
	commentStore := store.NewCommentStore(db)
	likeStore := store.NewLikeStore(db)

	renderCache := cache.NewRenderCache(valkeyClient, cache.DefaultRenderTTL)
	settingsCache := cache.NewSettingsCache(cache.DefaultSettingsTTL)

	// Live interaction snapshots. Change events travel over Valkey so every
	// instance refreshes its subscribers.
	hub := live.NewHub(live.NewValkeyBus(valkeyClient))
	hub.Start(ctx)

	accounts := identity.NewService(userStore, identity.NewTokens(cfg.Secret), "folio")
	interactions := interact.NewService(postStore, commentStore, likeStore, hub, admin)

	// Outgoing mail.
	var sender *mail.Sender
	if cfg.SMTPHost == "" {
		slog.Info("SMTP not configured, mail will be logged")
		sender = mail.NewLogSender(cfg.SMTPSender)
	} else {
		sender = mail.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	}

	var mailer mail.Dispatcher
	var closeMailer func(context.Context)
	if cfg.RabbitMQURL != "" {
		broker, err := mail.NewBroker(cfg.RabbitMQURL)
		if err != nil {
			slog.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		deliveries, err := broker.Consume()
		if err != nil {
			slog.Error("failed to consume mail queue", "error", err)
			os.Exit(1)
		}
		go mail.NewWorker(sender).Run(ctx, deliveries)
		mailer = mail.NewQueueDispatcher(broker)
		closeMailer = func(context.Context) { broker.Close() }
		slog.Info("mail jobs queued through rabbitmq")
	} else {
		async := mail.NewAsyncDispatcher(sender)
		mailer = async
		closeMailer = async.Close
	}

	// Object storage for uploaded images. Uploads are disabled without it.
	var assets handlers.AssetStore
	if cfg.S3Endpoint != "" {
		bucket, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			slog.Error("failed to create storage client", "error", err)
			os.Exit(1)
		}
		assets = storage.NewAssets(bucket)
		slog.Info("object storage configured", "bucket", cfg.S3Bucket)
	} else {
		slog.Warn("S3_ENDPOINT not set; image uploads are disabled")
	}

	// Create handler groups with their dependencies.
	api := handlers.NewAPI(interactions, postStore)
	h := router.Handlers{
		Public: handlers.NewPublic(renderer, postStore, projectStore, skillStore, settingStore, settingsCache, renderCache, interactions, mailer, cfg.ContactRecipient),
		Auth:   handlers.NewAuth(renderer, accounts, userStore, sessionStore, mailer, cfg.BaseURL),
		Admin:  handlers.NewAdmin(renderer, postStore, projectStore, skillStore, settingStore, settingsCache, interactions, commentStore, likeStore, renderCache, assets),
		API:    api,
	}

	formLimiter := middleware.NewRateLimiter(10, time.Minute)
	defer formLimiter.Stop()

	r := router.New(sessionStore, middleware.NewGate(admin, userStore, sessionStore), h, router.Options{
		SecureCookies: secureCookies,
		CORSOrigins:   cfg.CORSOrigins,
		FormLimiter:   formLimiter,
	})

	// WriteTimeout covers page renders; the interaction stream clears its
	// own deadline.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	srv.RegisterOnShutdown(api.CloseStreams)

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	closeMailer(shutdownCtx)

	slog.Info("server stopped gracefully")
}
