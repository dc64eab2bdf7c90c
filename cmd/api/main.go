package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/hafizmfadli/go-review/internal/auth"
	"github.com/hafizmfadli/go-review/internal/data"
	"github.com/hafizmfadli/go-review/internal/jsonlog"
	"github.com/hafizmfadli/go-review/internal/mailer"
	"github.com/hafizmfadli/go-review/internal/ratelimit"
	"github.com/hafizmfadli/go-review/migrations"
)

const version = "1.0.0"

// config holds every setting the application reads at startup. Defaults
// come from the environment (optionally a .env file) and can be overridden
// with command-line flags.
type config struct {
	port     int
	env      string
	logLevel string

	db struct {
		dsn          string
		maxOpenConns int
		maxIdleConns int
		maxIdleTime  string
		migrate      bool
	}

	// limiter configures the in-process per-client limiter applied to every
	// request, and the optional Redis-backed window on the auth endpoints.
	limiter struct {
		rps           float64
		burst         int
		enabled       bool
		redisAddr     string
		redisPassword string
		authLimit     int
		authWindow    time.Duration
	}

	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}

	auth struct {
		jwtSecret  string
		accessTTL  time.Duration
		codeSecret string
		codeTTL    time.Duration
	}

	cors struct {
		trustedOrigins []string
	}
}

// mailSender delivers a rendered template to one recipient.
type mailSender interface {
	Send(recipient, templateFile string, data any) error
}

// attemptLimiter limits attempts per client on the signup and token endpoints.
type attemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// application holds the dependencies of the HTTP handlers, helpers and
// middleware.
type application struct {
	config      config
	logger      *jsonlog.Logger
	models      data.Models
	mailer      mailSender
	codes       *auth.CodeGenerator
	tokens      *auth.TokenIssuer
	authLimiter attemptLimiter
	// wg tracks background goroutines so shutdown can wait for them.
	wg sync.WaitGroup
}

func main() {
	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	cfg, showVersion := parseFlags(os.Args[1:])
	if showVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	// Log entries are written to stdout as one JSON object per line.
	logger := jsonlog.NewLogger(os.Stdout, jsonlog.ParseLevel(cfg.logLevel))

	if cfg.auth.jwtSecret == "" || cfg.auth.codeSecret == "" {
		logger.PrintFatal(fmt.Errorf("both -jwt-secret and -code-secret must be set"), nil)
	}

	db, err := openDB(cfg)
	if err != nil {
		logger.PrintFatal(err, nil)
	}
	defer db.Close()

	logger.PrintInfo("database connection pool established", nil)

	if cfg.db.migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := migrations.Up(ctx, db); err != nil {
			logger.PrintFatal(err, nil)
		}

		// A dirty version means a migration failed half way and needs a
		// manual fix before the schema can be trusted.
		schemaVersion, dirty, err := migrations.Version(ctx, db)
		if err != nil {
			logger.PrintFatal(err, nil)
		}
		if dirty {
			logger.PrintFatal(fmt.Errorf("schema version %d is dirty", schemaVersion), nil)
		}
		logger.PrintInfo("database migrations applied", map[string]string{
			"version": strconv.FormatUint(uint64(schemaVersion), 10),
		})
	}

	// Declare an instance of the application struct holding every
	// dependency the handlers and middleware need.
	app := &application{
		config: cfg,
		logger: logger,
		models: data.NewModels(db),
		mailer: mailer.New(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender),
		codes:  auth.NewCodeGenerator(cfg.auth.codeSecret, cfg.auth.codeTTL),
		tokens: auth.NewTokenIssuer(cfg.auth.jwtSecret, cfg.auth.accessTTL),
	}

	// The Redis window is optional. Without it the signup and token
	// endpoints are only covered by the in-process per-IP limiter.
	if cfg.limiter.redisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		window, err := ratelimit.NewRedisWindow(ctx, cfg.limiter.redisAddr, cfg.limiter.redisPassword, cfg.limiter.authLimit, cfg.limiter.authWindow)
		cancel()
		if err != nil {
			logger.PrintFatal(err, nil)
		}
		defer window.Close()
		app.authLimiter = window
		logger.PrintInfo("redis auth rate limiter enabled", map[string]string{"addr": cfg.limiter.redisAddr})
	}

	err = app.serve()
	if err != nil {
		logger.PrintFatal(err, nil)
	}
}

// parseFlags builds the config from args, using environment variables as
// defaults.
func parseFlags(args []string) (config, bool) {
	var cfg config
	fs := flag.NewFlagSet("api", flag.ExitOnError)

	fs.IntVar(&cfg.port, "port", envInt("PORT", 4000), "API server port")
	fs.StringVar(&cfg.env, "env", getenv("APP_ENV", "development"), "Environment (development|staging|production)")
	fs.StringVar(&cfg.logLevel, "log-level", getenv("LOG_LEVEL", "info"), "Minimum log level (debug|info|warn|error)")

	fs.StringVar(&cfg.db.dsn, "db-dsn", os.Getenv("REVIEWS_DB_DSN"), "PostgreSQL DSN")
	fs.IntVar(&cfg.db.maxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	fs.IntVar(&cfg.db.maxIdleConns, "db-max-idle-conns", 25, "PostgreSQL max idle connections")
	fs.StringVar(&cfg.db.maxIdleTime, "db-max-idle-time", "15m", "PostgreSQL max connection idle time")
	fs.BoolVar(&cfg.db.migrate, "db-migrate", envBool("REVIEWS_DB_MIGRATE", false), "Apply embedded migrations at startup")

	fs.Float64Var(&cfg.limiter.rps, "limiter-rps", 2, "Rate limiter maximum requests per second")
	fs.IntVar(&cfg.limiter.burst, "limiter-burst", 4, "Rate limiter maximum burst")
	fs.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable rate limiter")
	fs.StringVar(&cfg.limiter.redisAddr, "limiter-redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the shared auth limiter (disabled if empty)")
	fs.StringVar(&cfg.limiter.redisPassword, "limiter-redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	fs.IntVar(&cfg.limiter.authLimit, "limiter-auth-limit", 10, "Maximum signup/token requests per client per window")
	fs.DurationVar(&cfg.limiter.authWindow, "limiter-auth-window", time.Minute, "Auth limiter window")

	fs.StringVar(&cfg.smtp.host, "smtp-host", getenv("SMTP_HOST", "127.0.0.1"), "SMTP host")
	fs.IntVar(&cfg.smtp.port, "smtp-port", envInt("SMTP_PORT", 1025), "SMTP port")
	fs.StringVar(&cfg.smtp.username, "smtp-username", os.Getenv("SMTP_USERNAME"), "SMTP username")
	fs.StringVar(&cfg.smtp.password, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password")
	fs.StringVar(&cfg.smtp.sender, "smtp-sender", getenv("SMTP_SENDER", "Reviews <no-reply@reviews.local>"), "SMTP sender")

	fs.StringVar(&cfg.auth.jwtSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "Access token signing secret")
	fs.DurationVar(&cfg.auth.accessTTL, "jwt-ttl", 24*time.Hour, "Access token lifetime")
	fs.StringVar(&cfg.auth.codeSecret, "code-secret", os.Getenv("CONFIRMATION_SECRET"), "Confirmation code signing secret")
	fs.DurationVar(&cfg.auth.codeTTL, "code-ttl", 24*time.Hour, "Confirmation code lifetime")

	// The environment value is applied first; fs.Parse calls the function
	// below only when the flag is given, replacing it.
	fs.Func("cors-trusted-origins", "Trusted CORS origins (space separated)", func(val string) error {
		cfg.cors.trustedOrigins = strings.Fields(val)
		return nil
	})
	cfg.cors.trustedOrigins = strings.Fields(os.Getenv("CORS_TRUSTED_ORIGINS"))

	displayVersion := fs.Bool("version", false, "Display version and exit")

	fs.Parse(args)

	return cfg, *displayVersion
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

// openDB returns a sql.DB connection pool, checked with a ping.
func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	// Cap in-use plus idle connections, and how many idle ones are kept.
	// A value of 0 or less means no limit.
	db.SetMaxOpenConns(cfg.db.maxOpenConns)
	db.SetMaxIdleConns(cfg.db.maxIdleConns)

	// Idle connections older than this are closed and removed from the pool.
	duration, err := time.ParseDuration(cfg.db.maxIdleTime)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(duration)

	// sql.Open does not connect. Ping with a 5-second deadline so a bad DSN
	// or an unreachable server fails at startup.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
