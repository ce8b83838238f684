package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sundayezeilo/shortly/internal/auth"
	"github.com/sundayezeilo/shortly/internal/config"
	"github.com/sundayezeilo/shortly/internal/db/migrate"
	db "github.com/sundayezeilo/shortly/internal/db/sqlc"
	dbsqlite "github.com/sundayezeilo/shortly/internal/db/sqlite"
	"github.com/sundayezeilo/shortly/internal/server"
	"github.com/sundayezeilo/shortly/internal/shortener"
)

// App holds the application dependencies and configuration.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DBPool *pgxpool.Pool // set when DB_DRIVER=postgres
	SQLDB  *sql.DB       // set when DB_DRIVER=sqlite
	Server *server.Server
}

// stores are the repositories backing the services.
type stores struct {
	links shortener.Repository
	users auth.Repository
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
		"db_driver", cfg.Database.Driver,
	)

	a := &App{Config: cfg, Logger: logger}

	st, err := a.openStores(ctx)
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil)
	accounts, err := auth.NewService(st.users, tokens, &auth.ServiceConfig{
		Hasher: auth.NewBcryptHasher(cfg.Auth.BcryptCost),
	})
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("failed to create account service: %w", err)
	}
	accountHandler := auth.NewHandler(auth.HandlerConfig{
		Service:      accounts,
		Logger:       logger,
		SecureCookie: cfg.Auth.CookieSecure,
	})

	links := shortener.NewService(st.links, &shortener.ServiceConfig{
		CodeLength:  cfg.Shortener.CodeLength,
		MaxAttempts: cfg.Shortener.MaxAttempts,
	})
	linkHandler := shortener.NewHandler(shortener.HandlerConfig{
		Service:      links,
		Logger:       logger,
		BaseURL:      cfg.Server.BaseURL,
		CurrentOwner: auth.OwnerFromContext,
	})

	a.Server = server.New(cfg, logger, server.Handlers{
		Links:    linkHandler,
		Accounts: accountHandler,
		Tokens:   tokens,
	})

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return a, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}
	if a.SQLDB != nil {
		if err := a.SQLDB.Close(); err != nil {
			return fmt.Errorf("close sqlite: %w", err)
		}
		a.Logger.Info("database connection closed")
	}

	return nil
}

// openStores connects the configured database, applies the schema and
// builds the repositories on top of it.
func (a *App) openStores(ctx context.Context) (stores, error) {
	cfg := a.Config

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := connectDatabase(ctx, cfg, a.Logger)
		if err != nil {
			return stores{}, err
		}
		a.DBPool = pool
		if err := migrate.Postgres(ctx, pool); err != nil {
			return stores{}, fmt.Errorf("failed to apply schema: %w", err)
		}
		queries := db.New(pool)
		return stores{
			links: shortener.NewPostgresRepository(queries, nil),
			users: auth.NewPostgresRepository(queries, nil),
		}, nil

	default:
		a.Logger.Info("opening sqlite database", "driver", dbsqlite.DriverFor(cfg.Database.SQLiteDSN))
		conn, err := dbsqlite.Open(ctx, cfg.Database.SQLiteDSN)
		if err != nil {
			return stores{}, err
		}
		a.SQLDB = conn
		if err := migrate.SQLite(ctx, conn); err != nil {
			return stores{}, fmt.Errorf("failed to apply schema: %w", err)
		}
		a.Logger.Info("database connection established")
		return stores{
			links: shortener.NewSQLiteRepository(conn, nil),
			users: auth.NewSQLiteRepository(conn, nil),
		}, nil
	}
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
