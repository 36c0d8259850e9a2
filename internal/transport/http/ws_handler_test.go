package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.LiveService) {
	t.Helper()
	sessions := memory.NewSessionStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	service := app.NewLiveService(sessions, quizRepo, memory.NewAnswerStore(), clockwork.NewRealClock(), zerolog.Nop(), app.Timing{
		CountdownSeconds: 1,
		RevealDelay:      50 * time.Millisecond,
		GraceGap:         50 * time.Millisecond,
	}, domain.ShowWelcome{Message: "welcome"})
	handler := NewWSHandler(service, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/operator", handler.ServeOperator)
	mux.HandleFunc("/ws/player", handler.ServePlayer)
	mux.HandleFunc("/ws/screen", handler.ServeScreen)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path + "?quizId=quiz-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil skips unrelated events (resync bursts, timer ticks) until the
// wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read while waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			var payload map[string]any
			_ = json.Unmarshal(msg.Payload, &payload)
			return payload
		}
	}
	t.Fatalf("timed out waiting for %s", want)
	return nil
}

func TestWebSocketJoinAndGuard(t *testing.T) {
	server, _ := newTestServer(t)

	operator := dial(t, server, "/ws/operator")
	player := dial(t, server, "/ws/player")
	screen := dial(t, server, "/ws/screen")

	// playback commands are rejected until the operator arms the console
	send(t, operator, domain.CmdStartRound, map[string]any{"round": 1})
	readUntil(t, operator, domain.EvtLiveGuardBlocked)

	// joining needs an open registration window
	send(t, player, domain.CmdJoin, map[string]any{"name": "Alice", "pin": "1234"})
	readUntil(t, player, domain.EvtJoinError)

	send(t, operator, domain.CmdToggleRegistrations, map[string]any{"open": true})
	readUntil(t, screen, domain.EvtShowWelcome)
	send(t, player, domain.CmdJoin, map[string]any{"name": "Alice", "pin": "1234"})
	payload := readUntil(t, player, domain.EvtJoinSuccess)
	if payload["name"] != "Alice" {
		t.Fatalf("expected join as Alice, got %v", payload)
	}

	// the join lands on the operator roster
	readUntil(t, operator, domain.EvtUpdatePlayerList)
}

func TestWebSocketQuestionRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)

	operator := dial(t, server, "/ws/operator")
	player := dial(t, server, "/ws/player")
	screen := dial(t, server, "/ws/screen")

	send(t, operator, domain.CmdToggleRegistrations, map[string]any{"open": true})
	readUntil(t, screen, domain.EvtShowWelcome)

	send(t, player, domain.CmdJoin, map[string]any{"name": "Alice", "pin": "1"})
	readUntil(t, player, domain.EvtJoinSuccess)

	send(t, operator, domain.CmdArm, map[string]any{"armed": true})
	send(t, operator, domain.CmdStartRound, map[string]any{"round": 1})
	readUntil(t, player, domain.EvtRoundCountdownStart)

	// the 1s test countdown expires into the first question
	unlock := readUntil(t, player, domain.EvtUnlockInput)
	if unlock["question_id"] != "q1" {
		t.Fatalf("expected q1 unlocked, got %v", unlock)
	}
	media := readUntil(t, screen, domain.EvtPlayMedia)
	if media["url"] != "/stream/q1.mp3" {
		t.Fatalf("expected media directive, got %v", media)
	}

	send(t, player, domain.CmdSubmitAnswer, map[string]any{
		"question_id":  "q1",
		"fields":       map[string]any{"artist": "Queen", "title": "Under Pressure"},
		"submitted_at": 3.5,
	})

	send(t, operator, domain.CmdLockRound, map[string]any{"round": 1})
	readUntil(t, player, domain.EvtLockInput)

	shown := readUntil(t, player, domain.EvtShowAnswer)
	if shown["max_points"] != float64(2) {
		t.Fatalf("expected audio max points 2, got %v", shown["max_points"])
	}
	readUntil(t, screen, domain.EvtShowCorrect)
	readUntil(t, screen, domain.EvtShowRoundSummary)

	send(t, operator, domain.CmdRequestGrading, map[string]any{"round": 1})
	readUntil(t, operator, domain.EvtReceiveGradingData)

	send(t, operator, domain.CmdFinalizeRound, map[string]any{"round": 1})
	board := readUntil(t, player, domain.EvtUpdateLeaderboard)
	if board["Alice"] != float64(2) {
		t.Fatalf("expected Alice at 2 points, got %v", board["Alice"])
	}
}

func TestWebSocketSubmitBeforeJoinRejected(t *testing.T) {
	server, _ := newTestServer(t)

	player := dial(t, server, "/ws/player")
	send(t, player, domain.CmdSubmitAnswer, map[string]any{"question_id": "q1"})
	readUntil(t, player, "error")
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Test Night",
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
		},
	}
}
