package app

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"livequiz-service/internal/domain"
)

// validScore enforces the discrete partial-credit scale.
func validScore(v float64) bool {
	return v == 0 || v == 0.5 || v == 1
}

func fieldApplicable(q domain.Question, field domain.ScoreField) bool {
	for _, f := range q.GradableFields() {
		if f == field {
			return true
		}
	}
	return false
}

// setScore assigns one field score on a locked answer. Out-of-range values
// and fields inapplicable to the question's variant are rejected.
func setScore(ans *domain.Answer, q domain.Question, field domain.ScoreField, value float64) error {
	if !validScore(value) {
		return &domain.GradingRejectedError{Reason: domain.RejectInvalidValue}
	}
	if !fieldApplicable(q, field) {
		return &domain.GradingRejectedError{Reason: domain.RejectInapplicableField}
	}
	if ans.Scores == nil {
		ans.Scores = make(map[domain.ScoreField]float64)
	}
	ans.Scores[field] = value
	return nil
}

// similarity is a normalized edit-distance ratio in [0,1].
func similarity(guess, correct string) float64 {
	g := strings.ToLower(strings.TrimSpace(guess))
	c := strings.ToLower(strings.TrimSpace(correct))
	if g == "" || c == "" {
		return 0
	}
	if g == c {
		return 1
	}
	longest := len([]rune(g))
	if n := len([]rune(c)); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(g, c)
	return 1 - float64(dist)/float64(longest)
}

// autoScore discretizes similarity onto the {0, 0.5, 1} scale.
func autoScore(guess, correct string) float64 {
	sim := similarity(guess, correct)
	switch {
	case sim >= 0.8:
		return 1
	case sim >= 0.5:
		return 0.5
	default:
		return 0
	}
}

// autoGrade pre-scores the ungraded fields of an answer. Operator-assigned
// scores are never clobbered.
func autoGrade(ans *domain.Answer, q domain.Question) {
	key := domain.KeyForQuestion(q)
	if ans.Scores == nil {
		ans.Scores = make(map[domain.ScoreField]float64)
	}
	for _, field := range q.GradableFields() {
		if _, graded := ans.Scores[field]; graded {
			continue
		}
		switch field {
		case domain.FieldArtist:
			ans.Scores[field] = autoScore(ans.Fields.Artist, key.Artist)
		case domain.FieldTitle:
			ans.Scores[field] = autoScore(ans.Fields.Title, key.Title)
		case domain.FieldExtra:
			ans.Scores[field] = autoScore(ans.Fields.Extra, key.Extra)
		case domain.FieldSingle:
			if q.Type == domain.QuestionMultipleChoice {
				if ans.Fields.Choice != domain.NoChoice && ans.Fields.Choice == q.CorrectChoice {
					ans.Scores[field] = 1
				} else {
					ans.Scores[field] = 0
				}
			} else {
				ans.Scores[field] = autoScore(ans.Fields.Title, key.Title)
			}
		}
	}
}

// gradingRows builds the operator's gradable view for one round: raw guesses,
// the canonical key, and per-field score slots (nil = ungraded).
func gradingRows(quiz domain.Quiz, answers []*domain.Answer) []domain.GradingRow {
	rows := make([]domain.GradingRow, 0, len(answers))
	for _, ans := range answers {
		q, ok := quiz.QuestionByID(ans.QuestionID)
		if !ok {
			continue
		}
		scores := make(map[domain.ScoreField]*float64, len(q.GradableFields()))
		for _, field := range q.GradableFields() {
			if v, graded := ans.Scores[field]; graded {
				value := v
				scores[field] = &value
			} else {
				scores[field] = nil
			}
		}
		rows = append(rows, domain.GradingRow{
			AnswerID:      ans.ID,
			Player:        ans.PlayerName,
			QuestionID:    q.ID,
			QuestionIndex: q.Position,
			QuestionType:  q.Type,
			Guess:         ans.Fields,
			Key:           domain.KeyForQuestion(q),
			Scores:        scores,
			SubmittedAt:   ans.SubmittedAt,
		})
	}
	return rows
}

// ungradedFields counts score slots still unassigned across a round.
func ungradedFields(quiz domain.Quiz, answers []*domain.Answer) int {
	missing := 0
	for _, ans := range answers {
		q, ok := quiz.QuestionByID(ans.QuestionID)
		if !ok {
			continue
		}
		for _, field := range q.GradableFields() {
			if _, graded := ans.Scores[field]; !graded {
				missing++
			}
		}
	}
	return missing
}

// recomputeLeaderboard rebuilds every player's total as the sum over all
// graded fields across all rounds. Recomputing from scratch keeps the board
// self-healing against double-finalize and out-of-order grading edits.
func recomputeLeaderboard(players []string, answers []*domain.Answer) domain.Leaderboard {
	board := make(domain.Leaderboard, len(players))
	for _, name := range players {
		board[name] = 0
	}
	for _, ans := range answers {
		board[ans.PlayerName] += ans.TotalPoints()
	}
	return board
}
