package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"retrotunes-service/internal/catalog"
	"retrotunes-service/internal/config"
	"retrotunes-service/internal/game"
	"retrotunes-service/internal/generator"
	"retrotunes-service/internal/infra/memory"
	pgstore "retrotunes-service/internal/infra/postgres"
	redisstore "retrotunes-service/internal/infra/redis"
	"retrotunes-service/internal/ledger"
	"retrotunes-service/internal/sound"
	"retrotunes-service/internal/supply"
	transport "retrotunes-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
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

	zlog, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var store ledger.Store = memory.NewStore()
	if cfg.Redis.Addr != "" {
		store = redisstore.NewStore(goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}

	led := ledger.New(store, logger)
	if err := led.MigrateLegacy(ctx); err != nil {
		logger.Warnw("legacy score migration", "err", err)
	}

	cat, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}

	apiKey := cfg.Gemini.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	model := cfg.Gemini.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	var gen generator.Generator
	if apiKey != "" {
		g, err := generator.NewGemini(ctx, apiKey, model, logger)
		if err != nil {
			logger.Warnw("generator unavailable, running catalog-only", "err", err)
		} else {
			gen = g
		}
	} else {
		logger.Infow("no api key configured, running catalog-only")
	}

	manager := supply.NewManager(
		cat,
		gen,
		supply.NewValidator(supply.DefaultDenylist()),
		config.Duration(cfg.Gemini.Timeout, supply.DefaultRemoteTimeout),
		logger,
	)

	tuning := game.Tuning{
		QuestionsPerMinute: cfg.Game.QuestionsPerMinute,
		LowWaterMark:       cfg.Game.LowWaterMark,
		RevealDelay:        config.Duration(cfg.Game.RevealDelay, time.Second),
		MinLoading:         config.Duration(cfg.Game.MinLoading, 600*time.Millisecond),
	}

	snd := sound.New(led, logger)
	wsHandler := transport.NewWSHandler(manager, led, snd, tuning, logger)
	api := transport.NewAPIHandler(led, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/scores", api.ServeScores)
	mux.HandleFunc("/preferences", api.ServePreferences)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Infow("starting trivia service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Infow("shutting down server")
	case <-ctx.Done():
		logger.Infow("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loadCatalog prefers the Postgres question table and falls back to the
// embedded bank, so a broken database never blocks startup.
func loadCatalog(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*catalog.Catalog, error) {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			logger.Warnw("postgres unavailable, using embedded catalog", "err", err)
			return catalog.Default()
		}
		cat, err := pgstore.NewCatalogLoader(pool).Load(ctx)
		if err != nil {
			logger.Warnw("question table unreadable, using embedded catalog", "err", err)
			return catalog.Default()
		}
		logger.Infow("catalog loaded from postgres", "questions", cat.Size())
		return cat, nil
	}
	return catalog.Default()
}
