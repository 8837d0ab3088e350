// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/config"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/handlers"
	"github.com/jason-s-yu/trivia/internal/hub"
	"github.com/jason-s-yu/trivia/internal/migrations"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/questions"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	logger.SetOutput(stdout)

	settings, err := cfg.GameSettings()
	if err != nil {
		return err
	}
	signer, err := auth.NewSigner(cfg.TokenKeySeed, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("building token signer: %w", err)
	}
	if cfg.TokenKeySeed == "" {
		logger.Warn("TOKEN_KEY_SEED not set; tokens will not survive a restart")
	}

	checks := map[string]handlers.Checker{}
	regCfg := game.RegistryConfig{
		Credentials: signer,
		Settings:    settings,
		Logger:      logger,
	}

	// --- Postgres (optional) ---
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.Run(ctx, pool); err != nil {
			return err
		}
		regCfg.Results = database.NewResults(pool)
		checks["postgres"] = handlers.CheckerFunc(pool.Ping)
		logger.Info("connected to postgres")
	}

	src, err := questionSource(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}
	regCfg.Source = src

	// --- Redis (optional) ---
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		regCfg.Actions = cache.NewActionLog(rdb, cfg.QueueName)
		checks["redis"] = redisChecker{rdb}
		logger.WithField("queue", cfg.QueueName).Info("connected to redis")
	}

	h := hub.New(logger, 0)
	regCfg.Broadcaster = h
	registry := game.NewRegistry(regCfg)

	api := &handlers.Server{
		Registry:     registry,
		Hub:          h,
		Tokens:       signer,
		Logger:       logger,
		PublicURL:    cfg.PublicURL,
		WriteTimeout: cfg.WSWriteTimeout,
		Checks:       checks,
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				registry.ReapIdle(now, cfg.RoomIdleTimeout)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		registry.Shutdown()
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// questionSource prefers the Postgres bank, then a CSV deck, then the
// built-in sample. A CSV deck seeds an empty bank.
func questionSource(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger logrus.FieldLogger) (questions.Source, error) {
	var csvDeck []models.Question
	if cfg.QuestionCSV != "" {
		deck, err := questions.LoadCSVFile(cfg.QuestionCSV)
		if err != nil {
			return nil, err
		}
		csvDeck = deck
		logger.WithFields(logrus.Fields{"path": cfg.QuestionCSV, "entries": len(deck)}).Info("loaded question csv")
	}

	if pool != nil {
		bank := database.NewQuestionBank(pool)
		n, err := bank.CountQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 && csvDeck != nil {
			n, err = bank.ImportQuestions(ctx, csvDeck)
			if err != nil {
				return nil, err
			}
			logger.WithField("rows", n).Info("seeded question bank from csv")
		}
		if n > 0 {
			return bank, nil
		}
	}
	if csvDeck != nil {
		return questions.Static{Questions: csvDeck}, nil
	}
	logger.Warn("no question bank configured; using the sample deck")
	return questions.Sample(), nil
}

// redisChecker adapts *redis.Client to handlers.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
