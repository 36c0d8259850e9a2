package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	create := func() *app.Session {
		return app.NewSession(sampleQuiz(), app.DefaultTiming(), domain.ShowWelcome{}, nil, clockwork.NewFakeClock(), zerolog.Nop())
	}

	session := store.GetOrCreate("quiz-1", create)
	if session == nil {
		t.Fatalf("expected session")
	}
	if !mr.Exists("live:session:quiz-1") {
		t.Fatalf("expected liveness marker to be set")
	}

	if again := store.GetOrCreate("quiz-1", create); again != session {
		t.Fatalf("expected the same session on repeat")
	}

	store.Delete("quiz-1")
	if mr.Exists("live:session:quiz-1") {
		t.Fatalf("expected liveness marker to be removed")
	}
}
