package app

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"livequiz-service/internal/domain"
)

type answerKey struct {
	player   string
	question string
}

type windowState int

const (
	windowClosed windowState = iota
	windowOpen
	// windowClosing accepts one forced final upsert per player between the
	// lock broadcast and the reveal, covering the client-side auto-submit.
	windowClosing
)

// ledger is the per-(player, question) upsert store. Submissions overwrite
// freely until lock (last write wins); locked rows are immutable except for
// score assignment.
type ledger struct {
	answers map[answerKey]*domain.Answer
	windows map[string]windowState
}

func newLedger() *ledger {
	return &ledger{
		answers: make(map[answerKey]*domain.Answer),
		windows: make(map[string]windowState),
	}
}

func (l *ledger) open(questionID string) {
	l.windows[questionID] = windowOpen
}

// closeSoft begins the lock: normal edits stop, but a player's first
// submission after the lock broadcast is still applied as the final upsert.
func (l *ledger) closeSoft(questionID string) {
	if l.windows[questionID] == windowOpen {
		l.windows[questionID] = windowClosing
	}
}

// closeHard marks every answer for the question locked and ends the window.
func (l *ledger) closeHard(questionID string) {
	l.windows[questionID] = windowClosed
	for key, ans := range l.answers {
		if key.question == questionID {
			ans.Locked = true
		}
	}
}

func (l *ledger) submit(player string, q domain.Question, fields domain.AnswerFields, submittedAt float64, now time.Time) (*domain.Answer, error) {
	key := answerKey{player: player, question: q.ID}
	state := l.windows[q.ID]
	if state == windowClosed {
		return nil, &domain.AnswerRejectedError{Reason: domain.RejectWrongPhase}
	}

	ans, ok := l.answers[key]
	if ok && ans.Locked {
		return nil, &domain.AnswerRejectedError{Reason: domain.RejectLocked}
	}
	if !ok {
		ans = &domain.Answer{
			ID:         uuid.NewString(),
			PlayerName: player,
			QuestionID: q.ID,
			Round:      q.Round,
		}
		l.answers[key] = ans
	}
	ans.Fields = fields
	ans.SubmittedAt = submittedAt
	ans.ReceivedAt = now
	if state == windowClosing {
		ans.Locked = true
	}
	return ans, nil
}

// lockPlayer locks one player's row for the question, creating an empty
// locked row if the player never submitted.
func (l *ledger) lockPlayer(player string, q domain.Question, now time.Time) *domain.Answer {
	key := answerKey{player: player, question: q.ID}
	ans, ok := l.answers[key]
	if !ok {
		ans = &domain.Answer{
			ID:         uuid.NewString(),
			PlayerName: player,
			QuestionID: q.ID,
			Round:      q.Round,
			Fields:     domain.AnswerFields{Choice: domain.NoChoice},
			ReceivedAt: now,
		}
		l.answers[key] = ans
	}
	ans.Locked = true
	return ans
}

func (l *ledger) get(player, questionID string) (*domain.Answer, bool) {
	ans, ok := l.answers[answerKey{player: player, question: questionID}]
	return ans, ok
}

func (l *ledger) byID(answerID string) (*domain.Answer, bool) {
	for _, ans := range l.answers {
		if ans.ID == answerID {
			return ans, true
		}
	}
	return nil, false
}

// forRound returns the round's answers ordered by question then player.
func (l *ledger) forRound(round int) []*domain.Answer {
	out := make([]*domain.Answer, 0)
	for _, ans := range l.answers {
		if ans.Round == round {
			out = append(out, ans)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].PlayerName < out[j].PlayerName
	})
	return out
}

// all returns every answer in the ledger.
func (l *ledger) all() []*domain.Answer {
	out := make([]*domain.Answer, 0, len(l.answers))
	for _, ans := range l.answers {
		out = append(out, ans)
	}
	return out
}

// deletePlayer drops every row belonging to a removed player.
func (l *ledger) deletePlayer(player string) {
	for key := range l.answers {
		if key.player == player {
			delete(l.answers, key)
		}
	}
}
