package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
	"quizsync-service/internal/infra/blob"
	"quizsync-service/internal/infra/memory"
	"quizsync-service/internal/infra/postgres"
	infraredis "quizsync-service/internal/infra/redis"
	"quizsync-service/internal/ordering"
)

func TestQuizRoundEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requireDocker(t)
	logger := zaptest.NewLogger(t).Sugar()

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	minioEndpoint, minioCleanup := startMinio(t, ctx)
	defer minioCleanup()

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := postgres.OpenPool(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	questionStore := postgres.NewQuestionStore(pool)
	if err := questionStore.SaveQuestionSet(ctx, "arithmetic", sampleQuestions()); err != nil {
		t.Fatalf("save question set: %v", err)
	}

	blobs, err := blob.NewMinioStore(blob.Options{
		Endpoint:  minioEndpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "quiz",
	}, logger)
	if err != nil {
		t.Fatalf("minio: %v", err)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	opts := infraredis.Options{KeyTTL: time.Hour}
	sessions := infraredis.NewSessionStore(redisClient, "game1", opts, logger)
	teams := infraredis.NewTeamStore(redisClient, "game1", opts, logger)
	answers := infraredis.NewAnswerStore(redisClient, "game1", opts, logger)

	host := app.NewHost("game1", sessions, logger,
		app.WithQuestionSource(memory.NewQuestionSetCache(questionStore, time.Minute)),
		app.WithBlobStore(blobs))
	registry := app.NewTeamService("game1", teams, blobs, logger)
	ledger := app.NewAnswerService(sessions, answers, logger)
	board := app.NewScoreboard("game1", sessions, teams, answers, logger)
	archive := postgres.NewResultArchive(db)
	recorder := app.NewResultRecorder(sessions, board, archive, logger)
	go func() { _ = recorder.Run(ctx) }()

	red, err := registry.Join(ctx, "Red", []byte("red-selfie"), "image/jpeg")
	if err != nil {
		t.Fatalf("join red: %v", err)
	}
	if !strings.Contains(red.SelfieRef, "selfies/game1/Red.jpg") {
		t.Fatalf("unexpected selfie url %q", red.SelfieRef)
	}
	if _, err := registry.Join(ctx, "Blue", []byte("blue-selfie"), "image/jpeg"); err != nil {
		t.Fatalf("join blue: %v", err)
	}

	if _, err := host.LoadQuestionSet(ctx, "arithmetic"); err != nil {
		t.Fatalf("load set: %v", err)
	}
	session, err := host.Advance(ctx, 0)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	m, err := ordering.NewMapper(session.Questions[0].AnswerOrder, len(session.Questions[0].Answers))
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	if _, err := ledger.Submit(ctx, 0, "Red", []int{m.CorrectDisplayed()}); err != nil {
		t.Fatalf("submit red: %v", err)
	}
	wrong := (m.CorrectDisplayed() + 1) % m.Len()
	if _, err := ledger.Submit(ctx, 0, "Blue", []int{wrong}); err != nil {
		t.Fatalf("submit blue: %v", err)
	}

	lb, err := board.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].TeamName != "Red" || lb.Entries[0].Score != 10 || lb.Entries[1].Score != 0 {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}

	finished, err := host.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		results, err := archive.ListResults(ctx, finished.QuestionSetID)
		if err != nil {
			t.Fatalf("list results: %v", err)
		}
		if len(results) == 2 {
			if results[0].TeamName != "Red" || results[0].Rank != 1 || results[0].Score != 10 {
				t.Fatalf("unexpected archived results %+v", results)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("results were not archived")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", Answers: []string{"4", "3", "5"}, Kind: domain.KindSingleChoice},
		{Text: "What is 3 * 3?", Answers: []string{"9", "6", "12", "33"}, Kind: domain.KindSingleChoice},
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container := startContainer(t, ctx, req, "postgres")
	host, port := endpoint(t, ctx, container, "5432/tcp")
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port)
	return dsn, func() {
		_ = container.Terminate(context.Background())
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container := startContainer(t, ctx, req, "redis")
	host, port := endpoint(t, ctx, container, "6379/tcp")
	url := fmt.Sprintf("redis://%s:%s", host, port)
	return url, func() {
		_ = container.Terminate(context.Background())
	}
}

func startMinio(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "minio/minio:latest",
		Cmd:          []string{"server", "/data"},
		Env:          map[string]string{"MINIO_ROOT_USER": "minioadmin", "MINIO_ROOT_PASSWORD": "minioadmin"},
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor:   wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}
	container := startContainer(t, ctx, req, "minio")
	host, port := endpoint(t, ctx, container, "9000/tcp")
	return host + ":" + port, func() {
		_ = container.Terminate(context.Background())
	}
}

func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest, name string) tc.Container {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", name, err)
	}
	return container
}

func endpoint(t *testing.T, ctx context.Context, container tc.Container, port nat.Port) (string, string) {
	t.Helper()
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return host, mapped.Port()
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
