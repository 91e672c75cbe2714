package cli

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizcast/internal/config"
	"quizcast/internal/domain"
	"quizcast/internal/gateway"
	"quizcast/internal/infra/memory"
	pgloader "quizcast/internal/infra/postgres"
	infraredis "quizcast/internal/infra/redis"
	"quizcast/internal/router"
	"quizcast/internal/session"
	transport "quizcast/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.SetLoader = memory.NewStaticSetLoader(sampleSets())
	if pool != nil {
		loader = pgloader.NewSetLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var bank router.QuestionBank
	if redisClient != nil {
		bank = infraredis.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		bank = memory.NewBankRepository(loader, bankTTL)
	}

	state := session.New()
	hub := gateway.NewHub()

	opts := []router.Option{router.WithQuestionBank(bank)}
	if redisClient != nil {
		scoreboardTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		opts = append(opts, router.WithScoreboardPublisher(infraredis.NewScoreboardPublisher(redisClient, scoreboardTTL)))
	}
	rt := router.New(state, hub, opts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go rt.Run(runCtx)

	wsHandler := transport.NewWSHandler(rt, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	// No Read/WriteTimeout here: /ws connections are long-lived.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz server on :%s", finalPort)
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

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}

// sampleSets provides a minimal question bank for running without Postgres.
func sampleSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []json.RawMessage{
				json.RawMessage(`{"question":"What is 2 + 2?","choices":["3","4","5"],"correctIndex":1,"points":10}`),
				json.RawMessage(`{"question":"Which planet is closest to the sun?","choices":["Venus","Mercury","Mars"],"correctIndex":1,"points":10}`),
			},
		},
	}
}
