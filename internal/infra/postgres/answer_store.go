package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"livequiz-service/internal/domain"
)

// AnswerRow is the durable form of one (player, question) answer.
type AnswerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID          string  `bun:"id,pk"`
	QuizID      string  `bun:"quiz_id,notnull"`
	PlayerName  string  `bun:"player_name,notnull"`
	QuestionID  string  `bun:"question_id,notnull"`
	Round       int     `bun:"round,notnull"`
	Artist      string  `bun:"artist_guess"`
	Title       string  `bun:"title_guess"`
	Extra       string  `bun:"extra_guess"`
	Choice      int     `bun:"choice_selected"`
	SubmittedAt float64 `bun:"submission_time"`
	Locked      bool    `bun:"is_locked"`
}

// ScoreRow is one graded field on an answer.
type ScoreRow struct {
	bun.BaseModel `bun:"table:answer_scores,alias:s"`

	AnswerID string  `bun:"answer_id,pk"`
	Field    string  `bun:"field,pk"`
	Value    float64 `bun:"value,notnull"`
}

// AnswerStore mirrors answers and scores into Postgres via bun. Upserts are
// keyed by (quiz, player, question) and (answer id, field), so fire-and-forget
// replays converge to the latest state.
type AnswerStore struct {
	db *bun.DB
}

func NewAnswerStore(db *bun.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

func (s *AnswerStore) SaveAnswer(ctx context.Context, quizID string, ans domain.Answer) error {
	row := &AnswerRow{
		ID:          ans.ID,
		QuizID:      quizID,
		PlayerName:  ans.PlayerName,
		QuestionID:  ans.QuestionID,
		Round:       ans.Round,
		Artist:      ans.Fields.Artist,
		Title:       ans.Fields.Title,
		Extra:       ans.Fields.Extra,
		Choice:      ans.Fields.Choice,
		SubmittedAt: ans.SubmittedAt,
		Locked:      ans.Locked,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (quiz_id, player_name, question_id) DO UPDATE").
		Set("artist_guess = EXCLUDED.artist_guess").
		Set("title_guess = EXCLUDED.title_guess").
		Set("extra_guess = EXCLUDED.extra_guess").
		Set("choice_selected = EXCLUDED.choice_selected").
		Set("submission_time = EXCLUDED.submission_time").
		Set("is_locked = EXCLUDED.is_locked").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) SaveScore(ctx context.Context, _ string, answerID string, field domain.ScoreField, value float64) error {
	row := &ScoreRow{AnswerID: answerID, Field: string(field), Value: value}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (answer_id, field) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}
