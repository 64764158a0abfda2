package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/quill-backend/internal/config"
	"github.com/AnshRaj112/quill-backend/internal/database"
	"github.com/AnshRaj112/quill-backend/internal/handlers"
	"github.com/AnshRaj112/quill-backend/internal/metrics"
	"github.com/AnshRaj112/quill-backend/internal/middleware"
	"github.com/AnshRaj112/quill-backend/internal/repository"
	"github.com/AnshRaj112/quill-backend/internal/routes"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/AnshRaj112/quill-backend/internal/supabase"
	"github.com/AnshRaj112/quill-backend/pkg/clientip"
	"github.com/AnshRaj112/quill-backend/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func main() {
	// Load env
	envErr := godotenv.Load()
	// Load configuration
	cfg := config.Load()
	log := newLogger(cfg)
	if envErr != nil {
		log.Info("No .env file found")
	}

	// Refresh tokens in Redis are encrypted when a key is set
	var cipher *utils.Cipher
	if cfg.EncryptionKey == "" {
		log.Warn("⚠️  ENCRYPTION_KEY not set. Session refresh tokens will be stored unencrypted.")
		log.Warn("   To generate a key, run: openssl rand -base64 32")
	} else if c, err := utils.NewCipher(cfg.EncryptionKey); err != nil {
		log.WithError(err).Warn("⚠️  ENCRYPTION_KEY is invalid. Session refresh tokens will be stored unencrypted.")
	} else {
		cipher = c
		log.Info("✅ Encryption key configured")
	}

	// Connect to PostgreSQL
	log.Info("Connecting to PostgreSQL...")
	db, err := database.ConnectPostgres(cfg.PostgresURI, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer db.Close()

	// Connect to Redis
	log.Info("Connecting to Redis...")
	rdb, err := database.ConnectRedis(cfg.RedisURI, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer rdb.Close()

	m := metrics.New()

	users := repository.NewUserRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	promptRepo := repository.NewPromptRepository(db)

	profiles := services.NewProfileService(users, log)
	cache := services.NewCacheService(rdb)
	usage := services.NewUsageService(promptRepo, profiles, cache, cfg.FreeMonthlyPrompts, log)
	entries := services.NewEntryService(entryRepo, profiles, m, log)
	replay := services.NewIdempotencyStore(rdb)

	// Auth stays unconfigured (and pages unguarded) until a real Supabase project is set
	var provider services.AuthProvider
	if cfg.SupabaseConfigured() {
		sb, err := supabase.New(supabase.Config{
			URL:            cfg.SupabaseURL,
			AnonKey:        cfg.SupabaseAnonKey,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			JWTSecret:      cfg.SupabaseJWTSecret,
		}, nil)
		if err != nil {
			log.WithError(err).Fatal("Invalid Supabase configuration")
		}
		provider = sb
		log.Info("✅ Supabase auth configured")
	} else {
		log.Warn("⚠️  Supabase is not configured. Sign-in is disabled and pages are not guarded.")
	}
	authSvc := services.NewAuthService(provider, services.NewSessionStore(rdb, cipher), profiles, log)

	var generator services.PromptGenerator = services.MockGenerator{}
	if cfg.OpenAIAPIKey != "" {
		generator = services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, nil)
		log.WithField("model", cfg.OpenAIModel).Info("✅ OpenAI prompt generation configured")
	} else {
		log.Warn("⚠️  OPENAI_API_KEY not set. Using the local mock prompt generator.")
	}
	guard := services.NewPromptGuard(rdb, services.PromptMinInterval, log)
	prompts := services.NewPromptService(entries, promptRepo, usage, guard, generator, m, log)

	checkout := services.NewCheckoutService(
		services.NewStripeCheckout(cfg.StripeSecretKey, nil),
		services.CheckoutConfig{
			SecretKey:     cfg.StripeSecretKey,
			PriceID:       cfg.StripePriceMonthly,
			WebhookSecret: cfg.StripeWebhookSecret,
			SiteURL:       cfg.SiteURL,
		},
		profiles, usage, m, log,
	)

	auth := middleware.NewAuth(authSvc, cfg.SessionCookieName, log)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustedProxies > 0 {
		r.Use(clientip.FromForwardedFor(cfg.TrustedProxies))
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(m))

	// CORS answers preflight with 200 so it never reaches the rate limiters
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit
	// Non-production: Redis-based rate limit only
	var limiter *middleware.RateLimiter
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
		log.Info("✅ Production security enabled (security headers, host check, per-IP + login rate limiting)")
	} else {
		limiter = middleware.NewRateLimiter(rdb, log)
		r.Use(limiter.Middleware)
	}

	// Health check and metrics
	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	deps := routes.Deps{
		Auth:           auth,
		AuthConfigured: authSvc.Configured(),
		FrontendDir:    cfg.FrontendDir,
		Sessions: handlers.NewAuthHandler(authSvc, handlers.CookieConfig{
			SessionName: cfg.SessionCookieName,
			Secure:      cfg.IsProduction(),
			SiteURL:     cfg.SiteURL,
		}, log),
		Account: handlers.NewAccountHandler(profiles, usage, log),
		Entries: handlers.NewEntryHandler(entries, replay, log),
		Prompts: handlers.NewPromptHandler(prompts, replay, log),
		Billing: handlers.NewBillingHandler(checkout, usage, log),
		Editor:  handlers.NewEditorHandler(entries, prompts, usage, handlers.EditorOptions{AllowedOrigins: cfg.AllowedOrigins}, m, log),
	}
	if cfg.AdminToken != "" && limiter != nil {
		deps.Admin = handlers.NewAdminHandler(limiter, cfg.AdminToken, log)
	}

	// Setup routes
	routes.SetupRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("🚀 Quill backend running on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
