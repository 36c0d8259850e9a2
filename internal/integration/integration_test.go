package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	pgstore "livequiz-service/internal/infra/postgres"
	pgmigrations "livequiz-service/internal/infra/postgres/migrations"
	infraredis "livequiz-service/internal/infra/redis"
)

func TestLiveRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	bundb := openBun(t, pgURL)
	defer bundb.Close()
	runMigrations(t, ctx, bundb)
	seedQuiz(t, ctx, bundb, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgstore.NewQuizLoader(pool)
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	answers := pgstore.NewAnswerStore(bundb)

	service := app.NewLiveService(sessions, quizRepo, answers, clockwork.NewRealClock(), zerolog.Nop(), app.Timing{
		CountdownSeconds: 1,
		RevealDelay:      50 * time.Millisecond,
		GraceGap:         50 * time.Millisecond,
	}, domain.ShowWelcome{Message: "integration"})

	session, err := service.Open(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	session.Arm(true)
	if err := session.ToggleRegistrations(true); err != nil {
		t.Fatalf("open registrations: %v", err)
	}
	if _, err := session.Join("Alice", "1111"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := session.StartRound(1); err != nil {
		t.Fatalf("start round: %v", err)
	}

	waitForPhase(t, session, domain.PhaseQuestionActive, 5*time.Second)
	if err := session.SubmitAnswer("Alice", "q1", domain.AnswerFields{Artist: "Queen", Title: "Under Pressure"}, 1.0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := session.LockRound(1); err != nil {
		// the 2s window may already have expired naturally
		var stale *domain.StaleCommandError
		if !errors.As(err, &stale) {
			t.Fatalf("lock round: %v", err)
		}
	}
	waitForPhase(t, session, domain.PhaseRoundSummary, 10*time.Second)

	if err := session.FinalizeRound(1); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	waitForPhase(t, session, domain.PhaseFinished, 5*time.Second)

	// write-through persistence lands in postgres
	waitForRows(t, ctx, bundb, 1)
	var row pgstore.AnswerRow
	if err := bundb.NewSelect().Model(&row).Where("player_name = ?", "Alice").Scan(ctx); err != nil {
		t.Fatalf("select answer: %v", err)
	}
	if row.QuizID != "quiz-1" || row.QuestionID != "q1" || !row.Locked {
		t.Fatalf("unexpected stored row %+v", row)
	}
	if row.Artist != "Queen" || row.Title != "Under Pressure" {
		t.Fatalf("expected last submitted guess stored, got %+v", row)
	}

	// the quiz document is cached in redis alongside the liveness marker
	if n, err := redisClient.Exists(ctx, "live:quiz:quiz-1").Result(); err != nil || n != 1 {
		t.Fatalf("expected cached quiz document, exists=%d err=%v", n, err)
	}
	if n, err := redisClient.Exists(ctx, "live:session:quiz-1").Result(); err != nil || n != 1 {
		t.Fatalf("expected session liveness marker, exists=%d err=%v", n, err)
	}
}

func waitForPhase(t *testing.T, session *app.Session, phase domain.Phase, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got, _, _ := session.State(); got == phase {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	got, _, _ := session.State()
	t.Fatalf("timed out waiting for phase %s, still %s", phase, got)
}

func waitForRows(t *testing.T, ctx context.Context, db *bun.DB, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := db.NewSelect().Model((*pgstore.AnswerRow)(nil)).Count(ctx)
		if err == nil && n >= want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d answer rows", want)
}

func openBun(t *testing.T, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func runMigrations(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, db *bun.DB, quiz domain.Quiz) {
	t.Helper()
	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Integration Night",
		Rounds: []domain.Round{
			{
				Number: 1,
				Questions: []domain.Question{
					{
						ID:       "q1",
						Round:    1,
						Position: 1,
						Type:     domain.QuestionAudio,
						Artist:   "Queen",
						Title:    "Under Pressure",
						MediaURL: "/stream/q1.mp3",
						Duration: 2,
					},
				},
			},
		},
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
