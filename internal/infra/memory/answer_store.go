package memory

import (
	"context"
	"sync"

	"livequiz-service/internal/domain"
)

// AnswerStore keeps mirrored answers in memory. Useful for tests and for
// running without any backing store; writes are idempotent keyed by
// (player, question) and (answer id, field), matching the durable stores.
type AnswerStore struct {
	mu      sync.Mutex
	answers map[string]map[answerKey]domain.Answer
}

type answerKey struct {
	player   string
	question string
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[string]map[answerKey]domain.Answer)}
}

func (s *AnswerStore) SaveAnswer(_ context.Context, quizID string, ans domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.answers[quizID]
	if !ok {
		rows = make(map[answerKey]domain.Answer)
		s.answers[quizID] = rows
	}
	rows[answerKey{player: ans.PlayerName, question: ans.QuestionID}] = ans.Clone()
	return nil
}

func (s *AnswerStore) SaveScore(_ context.Context, quizID, answerID string, field domain.ScoreField, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ans := range s.answers[quizID] {
		if ans.ID != answerID {
			continue
		}
		if ans.Scores == nil {
			ans.Scores = make(map[domain.ScoreField]float64)
		}
		ans.Scores[field] = value
		s.answers[quizID][key] = ans
		return nil
	}
	return nil
}

// Answers returns the stored rows for a quiz, for tests.
func (s *AnswerStore) Answers(quizID string) []domain.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Answer, 0, len(s.answers[quizID]))
	for _, ans := range s.answers[quizID] {
		out = append(out, ans.Clone())
	}
	return out
}
