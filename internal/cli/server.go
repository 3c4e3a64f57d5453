package cli

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	pginfra "quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/infra/sqlite"
	"quiz-attempt-service/internal/infra/sqlstore"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
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
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	grace := config.TTLDuration(cfg.Attempt.Grace, 5*time.Minute)
	var attempts app.AttemptRepository
	if redisClient != nil {
		attempts = redisinfra.NewAttemptStore(redisClient, grace)
	} else {
		attempts = memory.NewAttemptStore()
	}

	results, closeResults, err := openResultStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeResults.Close()

	opts := []app.ServiceOption{
		app.WithTickInterval(cfg.TickInterval()),
		app.WithLocale(cfg.Attempt.Locale),
	}
	if cfg.Attempt.SaveRetries > 0 {
		backoff := config.TTLDuration(cfg.Attempt.RetryBackoff, 2*time.Second)
		opts = append(opts, app.WithSaveRetry(cfg.Attempt.SaveRetries, backoff))
	}
	var localRecorder *memory.Recorder
	if redisClient != nil {
		retention := config.TTLDuration(cfg.Redis.TTL, 30*24*time.Hour)
		opts = append(opts, app.WithRecorder(redisinfra.NewRecorder(redisClient, retention)))
	} else {
		// open attempts older than a day are treated as abandoned
		localRecorder = memory.NewRecorder(24 * time.Hour)
		opts = append(opts, app.WithRecorder(localRecorder))
	}
	service := app.NewAttemptService(attempts, quizRepo, results, opts...)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz attempt service on :%s", finalPort)
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

	if localRecorder != nil {
		st := localRecorder.Stats()
		log.Printf("attempts: started=%d completed=%d passed=%d open=%d", st.Started, st.Completed, st.Passed, st.Open)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openResultStore prefers Postgres, then a SQLite file, then memory.
func openResultStore(ctx context.Context, cfg config.Config) (app.ResultRepository, io.Closer, error) {
	switch {
	case cfg.Postgres.URL != "":
		db := openBun(cfg.Postgres.URL)
		return sqlstore.NewResultStore(db), db, nil
	case cfg.SQLite.Path != "":
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.NewResultStore(db), db, nil
	default:
		return memory.NewResultStore(), nopCloser{}, nil
	}
}

// sampleQuizzes backs local runs without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:                "quiz-1",
			Title:             "Cloud Practitioner Warm-up",
			TimeLimitMinutes:  10,
			PassingPercentage: 70,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Type:   domain.QuestionSingleChoice,
					Prompt: "Which unit isolates failures inside a region?",
					Answers: []domain.Answer{
						{ID: "a1", Text: "Edge location", Order: 0},
						{ID: "a2", Text: "Availability zone", Correct: true, Order: 1, Explanation: "Zones have independent power and networking."},
						{ID: "a3", Text: "Account", Order: 2},
					},
				},
				{
					ID:     "q2",
					Type:   domain.QuestionTrueFalse,
					Prompt: "Object storage is block addressable.",
					Answers: []domain.Answer{
						{ID: "t", Text: "True", Order: 0},
						{ID: "f", Text: "False", Correct: true, Order: 1},
					},
				},
				{
					ID:     "q3",
					Type:   domain.QuestionMultiSelect,
					Prompt: "Which services store data durably?",
					Answers: []domain.Answer{
						{ID: "a1", Text: "Object storage", Correct: true, Order: 0},
						{ID: "a2", Text: "Load balancer", Order: 1},
						{ID: "a3", Text: "Managed database", Correct: true, Order: 2},
					},
					Points: 2,
				},
			},
		},
	}
}
