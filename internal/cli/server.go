package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quizsync-service/internal/app"
	"quizsync-service/internal/config"
	"quizsync-service/internal/domain"
	"quizsync-service/internal/infra/blob"
	"quizsync-service/internal/infra/csvsource"
	"quizsync-service/internal/infra/memory"
	"quizsync-service/internal/infra/postgres"
	infraredis "quizsync-service/internal/infra/redis"
	transport "quizsync-service/internal/transport/http"
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

type stores struct {
	sessions app.SessionStore
	teams    app.TeamStore
	answers  app.AnswerStore
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

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
	key := cfg.Session.Key

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err = postgres.OpenPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		db = postgres.OpenBun(cfg.Postgres.URL)
		defer db.Close()
	}

	st := newStores(key, redisClient, cfg, logger)

	blobs, memBlobs, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	source := newQuestionSource(cfg, pool)
	cacheTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)

	host := app.NewHost(key, st.sessions, logger.With("component", "host"),
		app.WithQuestionSource(memory.NewQuestionSetCache(source, cacheTTL)),
		app.WithBlobStore(blobs),
		app.WithDefaultSettings(domain.Settings{QuestionTimerSeconds: cfg.Session.QuestionTimerSeconds}),
	)
	if err := host.Resume(ctx); err != nil {
		return err
	}
	if _, loaded := host.Session(); !loaded && cfg.Session.DefaultQuestionSet != "" {
		if _, err := host.LoadQuestionSet(ctx, cfg.Session.DefaultQuestionSet); err != nil {
			logger.Warnw("default question set not loaded", "set", cfg.Session.DefaultQuestionSet, "error", err)
		}
	}

	tick := config.TTLDuration(cfg.Session.TickInterval, time.Second)
	timer := app.NewTimerCoordinator(host, tick, logger.With("component", "timer"))
	board := app.NewScoreboard(key, st.sessions, st.teams, st.answers, logger.With("component", "scoreboard"))

	services := transport.Services{
		SessionKey: key,
		Sessions:   st.sessions,
		Host:       host,
		Teams:      app.NewTeamService(key, st.teams, blobs, logger.With("component", "registry")),
		Answers:    app.NewAnswerService(st.sessions, st.answers, logger.With("component", "ledger")),
		Board:      board,
		Blobs:      memBlobs,
	}

	var recorder *app.ResultRecorder
	if db != nil {
		archive := postgres.NewResultArchive(db)
		services.Results = archive
		recorder = app.NewResultRecorder(st.sessions, board, archive, logger.With("component", "results"))
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(services, logger.With("component", "transport")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return timer.Run(gctx) })
	g.Go(func() error { return board.Run(gctx) })
	if recorder != nil {
		g.Go(func() error { return recorder.Run(gctx) })
	}
	g.Go(func() error {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stop)

		select {
		case <-stop:
			logger.Infow("shutting down server...")
		case <-gctx.Done():
			logger.Infow("context canceled, shutting down server...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// stops the background loops when shutdown came from a signal
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}

var errShutdown = errors.New("server shut down")

func newStores(key string, client *redis.Client, cfg config.Config, logger *zap.SugaredLogger) stores {
	if client == nil {
		return stores{
			sessions: memory.NewSessionStore(),
			teams:    memory.NewTeamStore(),
			answers:  memory.NewAnswerStore(),
		}
	}
	opts := infraredis.Options{KeyTTL: config.TTLDuration(cfg.Redis.KeyTTL, 24*time.Hour)}
	storeLogger := logger.With("component", "redis")
	return stores{
		sessions: infraredis.NewSessionStore(client, key, opts, storeLogger),
		teams:    infraredis.NewTeamStore(client, key, opts, storeLogger),
		answers:  infraredis.NewAnswerStore(client, key, opts, storeLogger),
	}
}

// newBlobStore returns the configured store; the memory store is also
// returned when assets must be served by this process.
func newBlobStore(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (app.BlobStore, *memory.BlobStore, error) {
	if cfg.Blob.Endpoint == "" {
		mem := memory.NewBlobStore("/blobs")
		return mem, mem, nil
	}
	store, err := blob.NewMinioStore(blobOptions(cfg), logger.With("component", "blob"))
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, nil, err
	}
	return store, nil, nil
}

func blobOptions(cfg config.Config) blob.Options {
	return blob.Options{
		Endpoint:   cfg.Blob.Endpoint,
		AccessKey:  cfg.Blob.AccessKey,
		SecretKey:  cfg.Blob.SecretKey,
		Bucket:     cfg.Blob.Bucket,
		UseSSL:     cfg.Blob.UseSSL,
		PublicURL:  cfg.Blob.PublicURL,
		PresignTTL: config.TTLDuration(cfg.Blob.PresignTTL, 24*time.Hour),
	}
}

func newQuestionSource(cfg config.Config, pool *pgxpool.Pool) app.QuestionSource {
	switch {
	case pool != nil:
		return postgres.NewQuestionStore(pool)
	case cfg.Questions.Dir != "":
		return csvsource.NewDirSource(cfg.Questions.Dir)
	default:
		return memory.NewStaticQuestionSource(sampleQuestionSets())
	}
}

// sampleQuestionSets provides a small built-in set for running without a database.
func sampleQuestionSets() map[string][]domain.Question {
	return map[string][]domain.Question{
		"demo": {
			{
				Text:    "What is 2 + 2?",
				Answers: []string{"4", "3", "5", "22"},
				Kind:    domain.KindSingleChoice,
			},
			{
				Text:    "Which of these are prime numbers?",
				Answers: []string{"2", "3", "4", "9"},
				Kind:    domain.KindMultiChoice,
				Correct: []int{0, 1},
			},
			{
				Text:    "Which planet is known as the red planet?",
				Answers: []string{"Mars", "Venus", "Jupiter"},
				Kind:    domain.KindSingleChoice,
			},
		},
	}
}
