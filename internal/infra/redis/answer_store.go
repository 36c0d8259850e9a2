package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
)

// AnswerStore mirrors answer rows and score writes into Redis hashes.
// Rows are stored as:   HSET live:{quizID}:answers {player}/{questionID} {json}
// Scores are stored as: HSET live:{quizID}:scores  {answerID}/{field} {value}
// Both writes are idempotent, so fire-and-forget replays are harmless.
type AnswerStore struct {
	client *redis.Client
}

func NewAnswerStore(client *redis.Client) *AnswerStore {
	return &AnswerStore{client: client}
}

func (s *AnswerStore) SaveAnswer(ctx context.Context, quizID string, ans domain.Answer) error {
	raw, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	field := ans.PlayerName + "/" + ans.QuestionID
	if err := s.client.HSet(ctx, s.answersKey(quizID), field, raw).Err(); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) SaveScore(ctx context.Context, quizID, answerID string, field domain.ScoreField, value float64) error {
	key := answerID + "/" + string(field)
	raw := strconv.FormatFloat(value, 'f', -1, 64)
	if err := s.client.HSet(ctx, s.scoresKey(quizID), key, raw).Err(); err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

func (s *AnswerStore) answersKey(quizID string) string {
	return "live:" + quizID + ":answers"
}

func (s *AnswerStore) scoresKey(quizID string) string {
	return "live:" + quizID + ":scores"
}
