package domain

import (
	"encoding/json"
	"time"
)

// QuestionType distinguishes how a question is asked and graded.
type QuestionType string

const (
	QuestionAudio          QuestionType = "audio"
	QuestionVideo          QuestionType = "video"
	QuestionText           QuestionType = "text"
	QuestionMultipleChoice QuestionType = "text_multiple"
	QuestionSimultaneous   QuestionType = "simultaneous"
)

// HasMedia reports whether the question type plays a clip.
func (t QuestionType) HasMedia() bool {
	return t == QuestionAudio || t == QuestionVideo || t == QuestionSimultaneous
}

// Question is an authored question. StartOffset and Duration are authored
// values; clients never override them during playback.
type Question struct {
	ID            string       `json:"id"`
	Round         int          `json:"round"`
	Position      int          `json:"position"`
	Type          QuestionType `json:"type"`
	Artist        string       `json:"artist,omitempty"`
	Title         string       `json:"title,omitempty"`
	AnswerText    string       `json:"answerText,omitempty"`
	QuestionText  string       `json:"questionText,omitempty"`
	Choices       []string     `json:"choices,omitempty"`
	CorrectChoice int          `json:"correctChoice,omitempty"`
	ExtraQuestion string       `json:"extraQuestion,omitempty"`
	ExtraAnswer   string       `json:"extraAnswer,omitempty"`
	MediaURL      string       `json:"mediaUrl,omitempty"`
	StartOffset   float64      `json:"startOffset,omitempty"`
	Duration      float64      `json:"duration"`
}

// MaxPoints is the grading ceiling for the question's variant.
func (q Question) MaxPoints() float64 {
	switch q.Type {
	case QuestionAudio, QuestionVideo:
		return 2
	case QuestionSimultaneous:
		return 3
	default:
		return 1
	}
}

// GradableFields lists the score slots applicable to the variant.
func (q Question) GradableFields() []ScoreField {
	switch q.Type {
	case QuestionAudio, QuestionVideo:
		return []ScoreField{FieldArtist, FieldTitle}
	case QuestionSimultaneous:
		return []ScoreField{FieldArtist, FieldTitle, FieldExtra}
	default:
		return []ScoreField{FieldSingle}
	}
}

// Round is an ordered group of questions graded together. Read-only to the core.
type Round struct {
	Number    int        `json:"number"`
	Questions []Question `json:"questions"`
}

// Quiz is the authored content for one event.
type Quiz struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Date   string  `json:"date,omitempty"`
	Rounds []Round `json:"rounds"`
}

// RoundByNumber returns the round with the given number.
func (q Quiz) RoundByNumber(n int) (Round, bool) {
	for _, r := range q.Rounds {
		if r.Number == n {
			return r, true
		}
	}
	return Round{}, false
}

// QuestionByID searches all rounds for a question.
func (q Quiz) QuestionByID(id string) (Question, bool) {
	for _, r := range q.Rounds {
		for _, question := range r.Questions {
			if question.ID == id {
				return question, true
			}
		}
	}
	return Question{}, false
}

// PlayerStatus is a contestant's live presence state.
type PlayerStatus string

const (
	StatusActive  PlayerStatus = "active"
	StatusAway    PlayerStatus = "away"
	StatusLocked  PlayerStatus = "locked"
	StatusOffline PlayerStatus = "offline"
)

// Player is a joined contestant. Name is the unique key within a session.
type Player struct {
	Name       string       `json:"name"`
	Pin        string       `json:"-"`
	Score      float64      `json:"score"`
	Status     PlayerStatus `json:"status"`
	LastActive time.Time    `json:"-"`
}

// ScoreField names a gradable slot on an answer.
type ScoreField string

const (
	FieldArtist ScoreField = "artist"
	FieldTitle  ScoreField = "title"
	FieldExtra  ScoreField = "extra"
	FieldSingle ScoreField = "single"
)

// NoChoice marks a multiple-choice answer with no selection. Choice index 0
// is a valid selection, so absence needs its own value.
const NoChoice = -1

// AnswerFields carries the guess values a contestant submitted.
type AnswerFields struct {
	Artist string `json:"artist,omitempty"`
	Title  string `json:"title,omitempty"`
	Extra  string `json:"extra,omitempty"`
	Choice int    `json:"choice"`
}

// UnmarshalJSON defaults Choice to NoChoice when the payload omits it, so an
// unanswered multiple-choice question never decodes as choice index 0.
func (f *AnswerFields) UnmarshalJSON(data []byte) error {
	type plain AnswerFields
	aux := plain{Choice: NoChoice}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = AnswerFields(aux)
	return nil
}

// Answer is the live row for one (player, question) pair. At most one row
// exists per pair; resubmission before lock overwrites it.
type Answer struct {
	ID          string                 `json:"id"`
	PlayerName  string                 `json:"playerName"`
	QuestionID  string                 `json:"questionId"`
	Round       int                    `json:"round"`
	Fields      AnswerFields           `json:"fields"`
	SubmittedAt float64                `json:"submittedAt"` // seconds into the question
	Locked      bool                   `json:"locked"`
	Scores      map[ScoreField]float64 `json:"scores,omitempty"`
	ReceivedAt  time.Time              `json:"-"`
}

// Clone returns a copy of the answer whose Scores map is detached from the
// receiver's, so it can cross a goroutine boundary safely.
func (a Answer) Clone() Answer {
	if a.Scores != nil {
		scores := make(map[ScoreField]float64, len(a.Scores))
		for field, v := range a.Scores {
			scores[field] = v
		}
		a.Scores = scores
	}
	return a
}

// TotalPoints sums the assigned field scores. Ungraded fields count as zero.
func (a Answer) TotalPoints() float64 {
	var sum float64
	for _, v := range a.Scores {
		sum += v
	}
	return sum
}

// AnswerKey is the canonical answer used for grading and reveal.
type AnswerKey struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Extra  string `json:"extra"`
	Choice string `json:"choice"`
}

// KeyForQuestion derives the canonical answer from the authored question.
func KeyForQuestion(q Question) AnswerKey {
	switch q.Type {
	case QuestionAudio, QuestionVideo:
		return AnswerKey{Artist: q.Artist, Title: q.Title}
	case QuestionText:
		return AnswerKey{Title: q.AnswerText}
	case QuestionMultipleChoice:
		choice := ""
		if q.CorrectChoice >= 0 && q.CorrectChoice < len(q.Choices) {
			choice = q.Choices[q.CorrectChoice]
		}
		return AnswerKey{Choice: choice}
	case QuestionSimultaneous:
		return AnswerKey{Artist: q.Artist, Title: q.Title, Extra: q.ExtraAnswer}
	}
	return AnswerKey{}
}

// Leaderboard maps player name to cumulative score. It is always recomputed
// from graded answers, never patched incrementally.
type Leaderboard map[string]float64
