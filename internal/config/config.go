package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	PostgresURI    string
	RedisURI       string
	EncryptionKey  string
	Port           string
	FrontendURL    string
	FrontendDir    string   // Built frontend served behind the page guard; empty serves a placeholder
	SiteURL        string   // NEXT_PUBLIC_SITE_URL / SITE_URL, base for OAuth and checkout redirects
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	Host           string   // Raw HOST env (e.g. https://api.quill.app)
	AllowedHost    string   // Hostname only for strict host check (production only)
	Environment    string   // ENV: production, development, etc.
	TrustedProxies int      // TRUSTED_PROXIES: X-Forwarded-For hops to trust, 0 uses RemoteAddr only
	AdminToken     string   // ADMIN_TOKEN: bearer token for /api/admin; empty disables those routes

	LogLevel  string
	LogFormat string

	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	SessionCookieName      string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	StripeSecretKey     string
	StripePriceMonthly  string
	StripeWebhookSecret string

	FreeMonthlyPrompts int
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")

	// AllowedHost is only set in production; host check is skipped in development
	var allowedHost string
	if env == "production" {
		allowedHost = bareHost(host)
	}

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	siteURL := strings.TrimRight(getEnv("NEXT_PUBLIC_SITE_URL", getEnv("SITE_URL", "")), "/")
	if siteURL != "" && !containsOrigin(allowedOrigins, siteURL) {
		allowedOrigins = append(allowedOrigins, siteURL)
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	logFormat := getEnv("LOG_FORMAT", "")
	if logFormat == "" {
		logFormat = "text"
		if env == "production" {
			logFormat = "json"
		}
	}

	return &Config{
		PostgresURI:    getEnv("DATABASE_URL", getEnv("POSTGRES_URI", "postgres://localhost:5432/quill?sslmode=disable")),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		Host:           host,
		AllowedHost:    allowedHost,
		Environment:    env,
		Port:           getEnv("PORT", "8080"),
		TrustedProxies: getEnvInt("TRUSTED_PROXIES", 0),
		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		FrontendDir:    getEnv("FRONTEND_DIR", ""),
		SiteURL:        siteURL,
		AllowedOrigins: allowedOrigins,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: logFormat,

		SupabaseURL:            strings.TrimRight(getEnv("SUPABASE_URL", getEnv("NEXT_PUBLIC_SUPABASE_URL", "")), "/"),
		SupabaseAnonKey:        getEnv("SUPABASE_ANON_KEY", getEnv("NEXT_PUBLIC_SUPABASE_ANON_KEY", "")),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", getEnv("SERVICE_ROLE_KEY", "")),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SessionCookieName:      getEnv("SESSION_COOKIE_NAME", "quill_session"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAIBaseURL: strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripePriceMonthly:  getEnv("STRIPE_PRICE_MONTHLY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		FreeMonthlyPrompts: getEnvInt("FREE_MONTHLY_PROMPTS", 10),
	}
}

// SupabaseConfigured reports whether auth is wired to a real project.
// Placeholder URLs count as unconfigured so local frontend work is not blocked.
func (c *Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != "" && !strings.Contains(c.SupabaseURL, "placeholder")
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func bareHost(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSpace(host)
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
