package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"quizcast/internal/domain"
	"quizcast/internal/gateway"
	pgloader "quizcast/internal/infra/postgres"
	pgmigrations "quizcast/internal/infra/postgres/migrations"
	infraredis "quizcast/internal/infra/redis"
	"quizcast/internal/router"
	"quizcast/internal/session"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizRoundTripEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedSet(t, ctx, pgURL, sampleSet())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	bank := infraredis.NewBankRepository(redisClient, pgloader.NewSetLoader(pool), 5*time.Minute)
	publisher := infraredis.NewScoreboardPublisher(redisClient, 5*time.Minute)

	state := session.New()
	hub := gateway.NewHub()
	rt := router.New(state, hub,
		router.WithQuestionBank(bank),
		router.WithScoreboardPublisher(publisher),
	)

	examiner := make(chan []byte, 16)
	studentA := make(chan []byte, 16)
	hub.Register("ex", examiner)
	hub.Register("a", studentA)

	apply := func(connID, typ, payload string) {
		rt.HandleEvent(ctx, domain.InboundEvent{ConnID: connID, Type: typ, Payload: json.RawMessage(payload)})
	}

	apply("a", domain.EventJoin, `{"name":"Alice"}`)
	apply("ex", domain.EventStartQuiz, `{"setId":"set-1","questionIndex":0}`)

	frame := lastOfType(t, studentA, domain.EventQuizStarted)
	var started domain.QuestionFrame
	if err := json.Unmarshal(frame, &started); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if !strings.Contains(string(started.Question), "2 + 2") {
		t.Fatalf("expected seeded question resolved from postgres, got %s", started.Question)
	}

	apply("a", domain.EventSubmitAnswer, `{"answer":"4","correct":true,"points":10}`)

	// The scoreboard export must reflect the scored answer.
	raw, err := redisClient.Get(ctx, "quiz:scoreboard").Result()
	if err != nil {
		t.Fatalf("read scoreboard export: %v", err)
	}
	var snapshot struct {
		Entries []domain.Participant `json:"entries"`
	}
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		t.Fatalf("unmarshal scoreboard: %v", err)
	}
	if len(snapshot.Entries) != 1 || snapshot.Entries[0].Score != 10 {
		t.Fatalf("unexpected exported scoreboard: %+v", snapshot.Entries)
	}
}

func lastOfType(t *testing.T, ch chan []byte, typ string) json.RawMessage {
	t.Helper()
	var payload json.RawMessage
	for {
		select {
		case raw := <-ch:
			var env struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("unmarshal envelope: %v", err)
			}
			if env.Type == typ {
				payload = env.Payload
			}
		default:
			if payload == nil {
				t.Fatalf("no %s event observed", typ)
			}
			return payload
		}
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
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedSet(t *testing.T, ctx context.Context, dsn string, set domain.QuestionSet) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal set: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_sets (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, set.ID, string(data)); err != nil {
		t.Fatalf("insert set: %v", err)
	}
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID: "set-1",
		Questions: []json.RawMessage{
			json.RawMessage(`{"question":"What is 2 + 2?","choices":["3","4","5"],"correctIndex":1,"points":10}`),
		},
	}
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
