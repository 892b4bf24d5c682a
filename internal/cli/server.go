package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/postgres"
	"timed-quiz-service/internal/infra/rabbitmq"
	infraredis "timed-quiz-service/internal/infra/redis"
	transport "timed-quiz-service/internal/transport/http"
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

// backends holds the stores chosen from config plus the cleanups for them.
type backends struct {
	sessions  app.SessionStore
	questions app.QuestionStore
	cache     app.QuestionRepository
	results   app.ResultStore
	users     app.UserStore
	events    app.EventPublisher
	closers   []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func buildBackends(ctx context.Context, cfg config.Config, log *logrus.Logger) (*backends, error) {
	b := &backends{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			b.Close()
			return nil, err
		}
		db := postgres.OpenDB(cfg.Postgres.URL)
		b.closers = append(b.closers, func() { _ = db.Close() })

		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)

		b.questions = postgres.NewQuestionStore(db)
		b.results = postgres.NewResultStore(db)
		b.users = postgres.NewUserStore(db)
	} else {
		log.Info("postgres not configured, using in-memory question, result and user stores")
		b.questions = memory.NewQuestionStore(triviaQuestions()...)
		b.results = memory.NewResultStore()
		b.users = memory.NewUserStore()
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	switch {
	case redisClient != nil:
		b.cache = infraredis.NewQuestionCache(redisClient, b.questions, questionTTL)
		b.sessions = infraredis.NewSessionStore(redisClient)
	case pool != nil:
		b.cache = memory.NewQuestionCache(b.questions, questionTTL)
		b.sessions = postgres.NewSessionStore(pool)
	default:
		b.cache = memory.NewQuestionCache(b.questions, questionTTL)
		b.sessions = memory.NewSessionStore()
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = publisher.Close() })
		b.events = publisher
	}
	return b, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := cfg.Logger()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	b, err := buildBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	questions := app.NewQuestionService(b.questions, b.cache)
	sessions := app.NewSessionService(b.sessions, questions, b.results,
		app.WithEventPublisher(b.events),
		app.WithLogger(log),
	)
	users := app.NewUserService(b.users)

	heartbeat := config.TTLDuration(cfg.Session.HeartbeatInterval, 5*time.Second)
	api := transport.NewAPI(sessions, questions, users, log, cfg.Session.DefaultTimeLimitMinutes)
	wsHandler := transport.NewWSHandler(sessions, heartbeat, log)

	accessLog := log.WriterLevel(logrus.InfoLevel)
	defer accessLog.Close()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(api, wsHandler, accessLog),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
