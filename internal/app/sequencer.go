package app

import (
	"livequiz-service/internal/domain"
)

// sequencer orders a round's questions and tracks the autoplay cursor. The
// owning session serializes access and does the actual scheduling.
type sequencer struct {
	round     int
	questions []domain.Question
	cursor    int
}

func newSequencer() *sequencer {
	return &sequencer{cursor: -1}
}

// load resets the cursor for a fresh auto-run of the round.
func (s *sequencer) load(r domain.Round) {
	s.round = r.Number
	s.questions = r.Questions
	s.cursor = -1
}

// next advances the cursor and returns the question it lands on.
func (s *sequencer) next() (domain.Question, bool) {
	if s.cursor+1 >= len(s.questions) {
		return domain.Question{}, false
	}
	s.cursor++
	return s.questions[s.cursor], true
}

// hasNext reports whether the round still has questions after the cursor.
func (s *sequencer) hasNext() bool {
	return s.cursor+1 < len(s.questions)
}

// seek moves the cursor onto a manually selected question so a subsequent
// auto-advance resumes from that position.
func (s *sequencer) seek(questionID string) bool {
	for i, q := range s.questions {
		if q.ID == questionID {
			s.cursor = i
			return true
		}
	}
	return false
}

func (s *sequencer) current() (domain.Question, bool) {
	if s.cursor < 0 || s.cursor >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[s.cursor], true
}
