package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiznet-service/internal/app"
	"quiznet-service/internal/config"
	"quiznet-service/internal/infra/memory"
	pgstore "quiznet-service/internal/infra/postgres"
	redisinfra "quiznet-service/internal/infra/redis"
	transport "quiznet-service/internal/transport/http"
)

// recordStore is everything the services need from one backing store.
type recordStore interface {
	app.Store
	app.AuthoringStore
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		log.Printf("auth secret not configured, using insecure development default")
		secret = "insecure-dev-secret"
	}

	var store recordStore
	memStore := memory.NewStore()
	store = memStore

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		store = pgstore.NewStore(db)

		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	cacheTTL := config.TTLDuration(cfg.Cache.TTL, time.Hour)

	var cache app.QuestionCache
	switch {
	case cfg.Redis.Addr != "" && pool != nil:
		cache = redisinfra.NewQuestionCache(newRedisClient(cfg), pgstore.NewCatalog(pool), cacheTTL)
	case cfg.Redis.Addr != "":
		cache = redisinfra.NewQuestionCache(newRedisClient(cfg), memStore, cacheTTL)
	case pool != nil:
		cache = memory.NewQuestionCache(pgstore.NewCatalog(pool), cacheTTL)
	default:
		cache = memory.NewQuestionCache(memStore, cacheTTL)
	}

	window := app.NewWindowPolicy(store, cfg.Window.EnforceStart)
	attempts := app.NewAttemptService(store, cache, window)
	authoring := app.NewAuthoringService(store)

	handler := transport.NewHandler(attempts, authoring, transport.NewVerifier(secret))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiznet service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newRedisClient(cfg config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
