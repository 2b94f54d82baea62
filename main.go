package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"textline/internal/auth"
	"textline/internal/config"
	"textline/internal/db"
	"textline/internal/envelope"
	"textline/internal/extract"
	"textline/internal/handlers"
	"textline/internal/logging"
	"textline/internal/middleware"
	"textline/internal/ratelimit"
	"textline/internal/repository"
	"textline/internal/service"
	"textline/internal/sms"
	"textline/internal/webhook"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	loadedEnv := []string{}
	if os.Getenv("DISABLE_DOTENV") == "" {
		loadedEnv = loadDotEnv()
	}
	logging.Init()
	if len(loadedEnv) > 0 {
		for _, p := range loadedEnv {
			slog.Info("loaded env file", "path", p)
		}
	} else {
		if os.Getenv("DISABLE_DOTENV") != "" {
			slog.Info("dotenv loading disabled")
		} else {
			slog.Info("no .env files found", "note", "ok in production")
		}
	}

	env := os.Getenv("ENV")
	isProduction := env == "production" || env == "prod"

	// All secrets are required in every environment; a dev instance without a
	// real webhook token would accept forged webhooks the same as prod.
	requiredSecrets := map[string]struct {
		minLength int
		hint      string
		forbidden []string
	}{
		"WEBHOOK_AUTH_TOKEN": {
			minLength: 16,
			hint:      "copy the auth token from the provider console",
			forbidden: []string{"replace", "changeme", "auth-token"},
		},
		"FIELD_ENCRYPTION_KEY": {
			minLength: 64,
			hint:      "generate with: openssl rand -hex 32",
			forbidden: []string{"replace", "changeme"},
		},
		"JWT_SECRET": {
			minLength: 32,
			hint:      "generate with: openssl rand -base64 32",
			forbidden: []string{"replace", "secret", "changeme", "jwt-secret"},
		},
		"ADMIN_PASSWORD_HASH": {
			minLength: 64,
			hint:      "derive with: go run ./scripts/hashpw",
			forbidden: []string{"replace", "changeme"},
		},
		"ADMIN_PASSWORD_SALT": {
			minLength: 32,
			hint:      "derive with: go run ./scripts/hashpw",
			forbidden: []string{"replace", "changeme"},
		},
	}
	if isProduction {
		requiredSecrets["DATABASE_URL"] = struct {
			minLength int
			hint      string
			forbidden []string
		}{
			minLength: 1,
			hint:      "set PostgreSQL connection string",
			forbidden: []string{},
		}
		requiredSecrets["PUBLIC_BASE_URL"] = struct {
			minLength int
			hint      string
			forbidden []string
		}{
			minLength: 1,
			hint:      "set the public origin the provider signs webhooks against",
			forbidden: []string{},
		}
	}

	var validationErrors []string
	for varName, rule := range requiredSecrets {
		value := strings.TrimSpace(os.Getenv(varName))
		if value == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("%s not set (hint: %s)", varName, rule.hint))
			continue
		}
		if len(value) < rule.minLength {
			validationErrors = append(validationErrors, fmt.Sprintf("%s too short (minimum %d characters, hint: %s)",
				varName, rule.minLength, rule.hint))
			continue
		}
		valueLower := strings.ToLower(value)
		for _, forbidden := range rule.forbidden {
			if strings.Contains(valueLower, strings.ToLower(forbidden)) {
				validationErrors = append(validationErrors, fmt.Sprintf("%s contains placeholder value %q (hint: %s)",
					varName, forbidden, rule.hint))
				break
			}
		}
	}
	if len(validationErrors) > 0 {
		envType := "development"
		if isProduction {
			envType = "production"
		}
		slog.Error("required secrets validation failed", "environment", envType, "errors", validationErrors)
		for _, e := range validationErrors {
			slog.Error("  - " + e)
		}
		os.Exit(1)
	}

	fieldKey, err := envelope.ParseKey(strings.TrimSpace(os.Getenv("FIELD_ENCRYPTION_KEY")))
	if err != nil {
		slog.Error("FIELD_ENCRYPTION_KEY invalid", "error", err, "hint", "generate with: openssl rand -hex 32")
		os.Exit(1)
	}
	codec, err := envelope.NewCodec(fieldKey)
	if err != nil {
		slog.Error("failed to initialize field encryption", "error", err)
		os.Exit(1)
	}

	adminVerifier, err := auth.DecodeHex(strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")))
	if err != nil {
		slog.Error("ADMIN_PASSWORD_HASH is not valid hex", "error", err)
		os.Exit(1)
	}
	adminSalt, err := auth.DecodeHex(strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_SALT")))
	if err != nil {
		slog.Error("ADMIN_PASSWORD_SALT is not valid hex", "error", err)
		os.Exit(1)
	}

	trustProxy := false
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			trustProxy = true
		}
	}

	tokenManager := auth.NewTokenManager([]byte(os.Getenv("JWT_SECRET")), 1*time.Hour)

	var store *repository.Store
	var redisClient *redis.Client

	redisAddr := os.Getenv("REDIS_ADDR")
	redisOpts, redisWarn, redisErr := redisOptionsFromAddr(redisAddr)
	if redisErr != nil {
		slog.Warn("invalid REDIS_ADDR; redis disabled", "error", redisErr)
	} else {
		if redisWarn != "" {
			slog.Warn(redisWarn)
		}
		redisAddr = redisOpts.Addr
		redisClient = redis.NewClient(redisOpts)
	}
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		sqlDB, err := db.Open(databaseURL)
		if err != nil {
			slog.Error("failed to open database", "error", err)
		} else {
			store = repository.NewStore(sqlDB)
		}
	} else {
		slog.Warn("DATABASE_URL not set; subscriber routes will return 503")
	}

	// If Redis is not reachable, degrade to the database-backed rate window.
	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis not reachable; rate windows fall back to database", "addr", redisAddr, "error", err)
			redisClient = nil
		}
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}
	configMgr, err := config.NewManager(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", configPath)
		os.Exit(1)
	}
	slog.Info("loaded server config", "path", configPath)

	pinCheckRule := configMgr.Get().PinCheck
	var pinLimiter *ratelimit.Limiter
	switch {
	case redisClient != nil:
		pinLimiter = ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient), pinCheckRule.Window(), pinCheckRule.MaxAttempts)
		slog.Info("pin check rate limiting via redis", "window", pinCheckRule.Window(), "max", pinCheckRule.MaxAttempts)
	case store != nil:
		pinLimiter = ratelimit.NewLimiter(ratelimit.NewSQLStore(store.DB), pinCheckRule.Window(), pinCheckRule.MaxAttempts)
		slog.Info("pin check rate limiting via database", "window", pinCheckRule.Window(), "max", pinCheckRule.MaxAttempts)
	default:
		slog.Warn("no redis and no database; pin check rate limiting disabled")
	}

	var extractor extract.Extractor
	if endpoint := os.Getenv("EXTRACT_ENDPOINT"); endpoint != "" {
		extractor = extract.NewHTTPExtractor(endpoint, os.Getenv("EXTRACT_API_KEY"))
		slog.Info("extraction oracle configured")
	} else {
		slog.Warn("EXTRACT_ENDPOINT not set; free-text joins will ask for name and number")
	}

	var sender sms.Sender = sms.Disabled{}
	if sid := os.Getenv("SMS_ACCOUNT_SID"); sid != "" {
		sender = sms.NewTwilioSender(sid, os.Getenv("WEBHOOK_AUTH_TOKEN"), os.Getenv("SMS_FROM_NUMBER"))
		slog.Info("outbound sms configured")
	} else {
		slog.Warn("SMS_ACCOUNT_SID not set; confirmation sends disabled")
	}

	subscriberSvc := service.NewSubscriberService(store, codec)
	inboundSvc := service.NewInboundService(subscriberSvc, extractor, sender, configMgr)
	pinCheckSvc := service.NewPinCheckService(store, subscriberSvc)

	adminOperator := os.Getenv("ADMIN_OPERATOR")
	if adminOperator == "" {
		adminOperator = "admin"
	}
	authSvc := service.NewAuthService(adminOperator, adminSalt, adminVerifier, auth.DefaultIterations, tokenManager)

	apiServer := handlers.API{
		Subscribers:   subscriberSvc,
		Inbound:       inboundSvc,
		PinCheck:      pinCheckSvc,
		Auth:          authSvc,
		Webhook:       webhook.NewValidator(os.Getenv("WEBHOOK_AUTH_TOKEN")),
		PublicBaseURL: strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.CORS())
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{TrustProxy: trustProxy}))

	r.Post("/webhook/sms", apiServer.PostWebhookSMS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", apiServer.GetHealth)
		r.Post("/auth/login", apiServer.PostAuthLogin)

		r.With(middleware.RateLimitByIP(pinLimiter, middleware.RateLimitOptions{TrustProxy: trustProxy})).
			Post("/pin/check", apiServer.PostPinCheck)

		r.Route("/subscribers", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(tokenManager))
			r.Get("/", apiServer.GetSubscribers)
			r.Post("/", apiServer.PostSubscribers)
			r.Get("/{id}", apiServer.GetSubscriber)
			r.Patch("/{id}", apiServer.PatchSubscriber)
			r.Delete("/{id}", apiServer.DeleteSubscriber)
			r.Post("/{id}/pin", apiServer.PostSubscriberPin)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "6140"
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting http server", "addr", server.Addr,
		"readTimeout", server.ReadTimeout,
		"writeTimeout", server.WriteTimeout)

	if err := server.ListenAndServe(); err != nil {
		slog.Error("http server stopped", "error", err)
		os.Exit(1)
	}
}

func loadDotEnv() []string {
	// Go does not automatically load .env files.
	// Allow explicit path via DOTENV_PATH, otherwise search upward for .env files.
	if p := strings.TrimSpace(os.Getenv("DOTENV_PATH")); p != "" {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return []string{p}
			}
		}
		return nil
	}

	candidates := []string{
		".env.local",
		".env",
	}

	var loaded []string
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	for dir := wd; ; {
		for _, name := range candidates {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := godotenv.Load(p); err == nil {
				loaded = append(loaded, p)
			}
		}
		if len(loaded) > 0 {
			return loaded
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return loaded
}

func redisOptionsFromAddr(redisAddr string) (*redis.Options, string, error) {
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// Try parsing as Redis URL (redis://[:password@]host:port[/db])
	if strings.Contains(redisAddr, "://") {
		if opts, err := redis.ParseURL(redisAddr); err == nil {
			if env := os.Getenv("ENV"); (env == "production" || env == "prod") && opts.Password == "" {
				return opts, "WARNING: Redis has no password in production environment", nil
			}
			return opts, "", nil
		}
		parsed, err := url.Parse(redisAddr)
		if err != nil {
			return nil, "", fmt.Errorf("parse REDIS_ADDR: %w", err)
		}
		if parsed.Host == "" {
			return nil, "", fmt.Errorf("REDIS_ADDR missing host: %q", redisAddr)
		}
		warn := ""
		if parsed.Scheme != "" && parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
			warn = fmt.Sprintf("REDIS_ADDR uses %q scheme; using host %q", parsed.Scheme, parsed.Host)
		}
		return &redis.Options{Addr: parsed.Host}, warn, nil
	}

	opts := &redis.Options{Addr: redisAddr}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		opts.Password = redisPassword
	}
	if env := os.Getenv("ENV"); (env == "production" || env == "prod") && opts.Password == "" {
		return opts, "WARNING: Redis has no password in production environment", nil
	}

	return opts, "", nil
}
