package app

import (
	"livequiz-service/internal/domain"
)

// Subscription is one connected client's view of the session's event stream.
type Subscription struct {
	session *Session
	sub     *subscriber
}

// Events is the delivery channel. It is closed on Cancel.
func (s *Subscription) Events() <-chan domain.Event {
	return s.sub.ch
}

// Cancel detaches the subscriber. Safe to call once the connection drops;
// the session keeps running.
func (s *Subscription) Cancel() {
	s.session.mu.Lock()
	defer s.session.mu.Unlock()
	s.session.bcast.remove(s.sub)
}

// BindPlayer associates a contestant connection with its joined player name
// and delivers the player-specific part of the resync burst.
func (s *Subscription) BindPlayer(name string) {
	s.session.mu.Lock()
	defer s.session.mu.Unlock()
	s.sub.player = name
	for _, evt := range s.session.contestantResync(name) {
		s.session.bcast.sendTo(s.sub, evt)
	}
}

// Subscribe attaches a client of one channel class and immediately pushes the
// full resynchronization burst, so a client that missed intermediate events
// still converges to the correct view.
func (s *Session) Subscribe(audience domain.Audience) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.bcast.add(audience)
	for _, evt := range s.resyncEvents(audience) {
		s.bcast.sendTo(sub, evt)
	}
	return &Subscription{session: s, sub: sub}
}

// resyncEvents assumes mu is held.
func (s *Session) resyncEvents(audience domain.Audience) []domain.Event {
	events := []domain.Event{
		{Type: domain.EvtPauseState, Payload: domain.PauseState{Paused: s.paused}},
	}

	remaining, total, _ := s.timer.Snapshot()
	timerEvt := domain.Event{
		Type:    domain.EvtTimerUpdate,
		Payload: domain.TimerUpdate{Remaining: remaining, Total: total, Phase: s.phase},
	}

	if audience&domain.ToOperator != 0 {
		events = append(events, domain.Event{Type: domain.EvtPlayerListFull, Payload: s.players.snapshot()})
		if s.current != nil {
			events = append(events, domain.Event{Type: domain.EvtPlayMedia, Payload: displayPayload(*s.current)})
		}
		if total > 0 {
			events = append(events, timerEvt)
		}
	}

	if audience&domain.ToDisplay != 0 {
		switch s.phase {
		case domain.PhaseRegistrationOpen:
			events = append(events, domain.Event{Type: domain.EvtShowWelcome, Payload: s.welcome})
		case domain.PhaseCountdown:
			events = append(events, domain.Event{
				Type:    domain.EvtRoundCountdownStart,
				Payload: domain.RoundCountdownStart{Round: s.round},
			})
		case domain.PhaseQuestionActive, domain.PhaseLocked:
			if s.current != nil {
				events = append(events, domain.Event{Type: domain.EvtPlayMedia, Payload: displayPayload(*s.current)})
			}
		case domain.PhaseReveal:
			if s.current != nil {
				key := domain.KeyForQuestion(*s.current)
				events = append(events, domain.Event{
					Type:    domain.EvtShowCorrect,
					Payload: domain.ShowCorrect{Artist: key.Artist, Title: key.Title},
				})
			}
		case domain.PhaseRoundSummary:
			events = append(events, s.displaySummaryEvent())
		}
		if total > 0 {
			events = append(events, timerEvt)
		}
		events = append(events, domain.Event{Type: domain.EvtUpdateLeaderboard, Payload: s.board})
	}

	return events
}

// contestantResync assumes mu is held.
func (s *Session) contestantResync(player string) []domain.Event {
	switch s.phase {
	case domain.PhaseQuestionActive:
		if s.current == nil {
			return nil
		}
		if s.players.isLocked(player) {
			return []domain.Event{{Type: domain.EvtLockInput}}
		}
		if ans, ok := s.answers.get(player, s.current.ID); ok && ans.Locked {
			return []domain.Event{{Type: domain.EvtLockInput}}
		}
		return []domain.Event{{
			Type:    domain.EvtUnlockInput,
			Payload: unlockPayload(*s.current, float64(s.startedAt.UnixMilli())/1000),
		}}
	case domain.PhaseLocked, domain.PhaseReveal:
		return []domain.Event{{Type: domain.EvtLockInput}}
	case domain.PhaseRoundSummary:
		return []domain.Event{s.contestantSummaryEvent()}
	}
	return nil
}

// roundSummaryEntries assumes mu is held.
func (s *Session) roundSummaryEntries() []domain.RoundSummaryEntry {
	r, _ := s.quiz.RoundByNumber(s.round)
	entries := make([]domain.RoundSummaryEntry, 0, len(r.Questions))
	for _, q := range r.Questions {
		entries = append(entries, domain.RoundSummaryEntry{
			QuestionIndex: q.Position,
			Key:           domain.KeyForQuestion(q),
		})
	}
	return entries
}

// contestantSummaryEvent assumes mu is held.
func (s *Session) contestantSummaryEvent() domain.Event {
	return domain.Event{
		Type:    domain.EvtShowRoundSummary,
		Payload: domain.ShowRoundSummary{Round: s.round, Answers: s.roundSummaryEntries()},
	}
}

// displaySummaryEvent assumes mu is held.
func (s *Session) displaySummaryEvent() domain.Event {
	return domain.Event{
		Type:    domain.EvtShowRoundSummary,
		Payload: domain.RoundSummaryBoard{Round: s.round, Songs: s.roundSummaryEntries()},
	}
}
