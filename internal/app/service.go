package app

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"livequiz-service/internal/domain"
)

// SessionRepository abstracts how live sessions are stored (in-memory, Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(quizID string, create func() *Session) *Session
	Get(quizID string) (*Session, bool)
	Delete(quizID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// LiveService owns the running sessions. One session per active quiz;
// independent sessions run fully in parallel.
type LiveService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	store    AnswerStore
	clock    clockwork.Clock
	log      zerolog.Logger
	timing   Timing
	welcome  domain.ShowWelcome
}

func NewLiveService(sessions SessionRepository, quizzes QuizRepository, store AnswerStore, clock clockwork.Clock, log zerolog.Logger, timing Timing, welcome domain.ShowWelcome) *LiveService {
	return &LiveService{
		sessions: sessions,
		quizzes:  quizzes,
		store:    store,
		clock:    clock,
		log:      log,
		timing:   timing,
		welcome:  welcome,
	}
}

// Open activates (or re-attaches to) the live session for a quiz. The quiz
// content must exist; clients cannot open sessions for unknown quizzes.
func (s *LiveService) Open(ctx context.Context, quizID string) (*Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	session := s.sessions.GetOrCreate(quizID, func() *Session {
		return NewSession(quiz, s.timing, s.welcome, s.store, s.clock, s.log)
	})
	return session, nil
}

// Get returns the running session for a quiz, if any.
func (s *LiveService) Get(quizID string) (*Session, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Switch drops the session for a quiz so the operator can activate another.
// The superseded session's subscribers are left to reconnect.
func (s *LiveService) Switch(ctx context.Context, fromQuizID, toQuizID string) (*Session, error) {
	s.sessions.Delete(fromQuizID)
	return s.Open(ctx, toQuizID)
}
