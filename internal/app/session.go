package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"livequiz-service/internal/domain"
)

// AnswerStore mirrors accepted answers and score writes to durable storage.
// Writes are fire-and-forget from the session's perspective and must be
// idempotent keyed by (player, question) and (answer id, field).
type AnswerStore interface {
	SaveAnswer(ctx context.Context, quizID string, ans domain.Answer) error
	SaveScore(ctx context.Context, quizID, answerID string, field domain.ScoreField, value float64) error
}

// Timing bundles the session's scheduling knobs.
type Timing struct {
	CountdownSeconds int           // pre-round countdown, 30s per the format
	RevealDelay      time.Duration // gap between lock and reveal, absorbs final upserts
	GraceGap         time.Duration // gap between reveal and the next question
}

// DefaultTiming matches the live event format.
func DefaultTiming() Timing {
	return Timing{
		CountdownSeconds: 30,
		RevealDelay:      2 * time.Second,
		GraceGap:         5 * time.Second,
	}
}

// Session is the per-event actor: one quiz, one operator surface, many
// contestants, one or more displays. Every mutation is serialized behind mu;
// timer ticks and scheduled auto-advances are the only spontaneous state
// changes and re-validate against phase and generation before acting.
type Session struct {
	quiz    domain.Quiz
	timing  Timing
	welcome domain.ShowWelcome
	store   AnswerStore
	clock   clockwork.Clock
	log     zerolog.Logger

	mu        sync.Mutex
	phase     domain.Phase
	armed     bool
	paused    bool
	round     int
	current   *domain.Question
	startedAt time.Time

	seq     *sequencer
	answers *ledger
	players *roster
	bcast   *broadcaster
	timer   *PhaseTimer
	board   domain.Leaderboard

	// gen invalidates scheduled reveal/advance callbacks across transitions
	gen     int
	pending clockwork.Timer
}

func NewSession(quiz domain.Quiz, timing Timing, welcome domain.ShowWelcome, store AnswerStore, clock clockwork.Clock, log zerolog.Logger) *Session {
	s := &Session{
		quiz:    quiz,
		timing:  timing,
		welcome: welcome,
		store:   store,
		clock:   clock,
		log:     log.With().Str("quiz", quiz.ID).Logger(),
		phase:   domain.PhaseIdle,
		seq:     newSequencer(),
		answers: newLedger(),
		players: newRoster(),
		bcast:   newBroadcaster(),
		board:   make(domain.Leaderboard),
	}
	s.timer = NewPhaseTimer(clock, s.handleTick, s.handleExpire)
	return s
}

// Quiz returns the authored content the session runs.
func (s *Session) Quiz() domain.Quiz { return s.quiz }

// Snapshot of the orthogonal flags and phase, for tests and diagnostics.
func (s *Session) State() (domain.Phase, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, s.armed, s.paused
}

// --- operator commands ---

// Arm flips the live-control guard. Playback-starting commands are rejected
// while unarmed.
func (s *Session) Arm(armed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = armed
}

// ToggleRegistrations opens or closes the join window from IDLE.
func (s *Session) ToggleRegistrations(open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case open && s.phase == domain.PhaseIdle:
		s.phase = domain.PhaseRegistrationOpen
		s.bcast.send(domain.ToDisplay, domain.Event{Type: domain.EvtShowWelcome, Payload: s.welcome})
		return nil
	case !open && s.phase == domain.PhaseRegistrationOpen:
		s.phase = domain.PhaseIdle
		return nil
	}
	return &domain.GuardError{Command: domain.CmdToggleRegistrations, Phase: s.phase, Reason: "registrations cannot toggle in this phase"}
}

// StartRound begins the fixed pre-round countdown for round n.
func (s *Session) StartRound(round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed {
		return &domain.GuardError{Command: domain.CmdStartRound, Phase: s.phase, Reason: "live control not armed"}
	}
	if s.round == round && (s.phase == domain.PhaseCountdown || s.phase == domain.PhaseQuestionActive) {
		return s.dropStale(domain.CmdStartRound, fmt.Sprintf("round %d", round))
	}
	switch s.phase {
	case domain.PhaseIdle, domain.PhaseRegistrationOpen, domain.PhaseRoundSummary:
	default:
		return &domain.GuardError{Command: domain.CmdStartRound, Phase: s.phase, Reason: "round cannot start in this phase"}
	}
	r, ok := s.quiz.RoundByNumber(round)
	if !ok {
		return &domain.GuardError{Command: domain.CmdStartRound, Phase: s.phase, Reason: domain.ErrRoundNotFound.Error()}
	}
	s.beginCountdown(r)
	return nil
}

// beginCountdown assumes mu is held.
func (s *Session) beginCountdown(r domain.Round) {
	s.gen++
	s.cancelPending()
	s.round = r.Number
	s.seq.load(r)
	s.current = nil
	s.phase = domain.PhaseCountdown
	s.setPaused(false)
	s.bcast.send(domain.ToDisplay|domain.ToContestant, domain.Event{
		Type:    domain.EvtRoundCountdownStart,
		Payload: domain.RoundCountdownStart{Round: r.Number},
	})
	s.timer.Start(s.timing.CountdownSeconds)
}

// PlayQuestion manually activates a question. It bypasses the autoplay cursor
// but still updates it, so a later auto-advance resumes from here.
func (s *Session) PlayQuestion(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed {
		return &domain.GuardError{Command: domain.CmdPlayQuestion, Phase: s.phase, Reason: "live control not armed"}
	}
	if s.phase == domain.PhaseIdle || s.phase == domain.PhaseRegistrationOpen || s.phase == domain.PhaseFinished {
		return &domain.GuardError{Command: domain.CmdPlayQuestion, Phase: s.phase, Reason: "no round in progress"}
	}
	q, ok := s.quiz.QuestionByID(questionID)
	if !ok {
		return &domain.GuardError{Command: domain.CmdPlayQuestion, Phase: s.phase, Reason: domain.ErrQuestionNotFound.Error()}
	}
	if s.current != nil && s.current.ID == questionID && s.phase == domain.PhaseQuestionActive {
		return s.dropStale(domain.CmdPlayQuestion, questionID)
	}
	if q.Round != s.round {
		r, ok := s.quiz.RoundByNumber(q.Round)
		if !ok {
			return &domain.GuardError{Command: domain.CmdPlayQuestion, Phase: s.phase, Reason: domain.ErrRoundNotFound.Error()}
		}
		s.round = r.Number
		s.seq.load(r)
	}
	s.seq.seek(q.ID)
	s.activateQuestion(q)
	return nil
}

// activateQuestion assumes mu is held.
func (s *Session) activateQuestion(q domain.Question) {
	s.gen++
	s.cancelPending()
	s.timer.Cancel()

	question := q
	s.current = &question
	s.phase = domain.PhaseQuestionActive
	s.setPaused(false)
	s.startedAt = s.clock.Now()
	s.players.unlockAll(s.startedAt)
	s.answers.open(q.ID)

	s.bcast.send(domain.ToContestant, domain.Event{
		Type:    domain.EvtUnlockInput,
		Payload: unlockPayload(q, float64(s.startedAt.UnixMilli())/1000),
	})
	// the display payload doubles as the playback directive for media-backed
	// variants; a new directive implicitly cancels any previous one
	s.bcast.send(domain.ToDisplay|domain.ToOperator, domain.Event{
		Type:    domain.EvtPlayMedia,
		Payload: displayPayload(q),
	})
	s.timer.Start(int(q.Duration))
}

// TogglePause freezes or resumes the countdown or the active question window.
// The frozen remaining value survives arbitrarily long pauses.
func (s *Session) TogglePause(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.phase.Pausable() {
		return &domain.GuardError{Command: domain.CmdTogglePause, Phase: s.phase, Reason: "nothing to pause in this phase"}
	}
	if s.paused == paused {
		return s.dropStale(domain.CmdTogglePause, fmt.Sprintf("paused=%v", paused))
	}
	if paused {
		s.timer.Pause()
	} else {
		s.timer.Resume()
	}
	s.setPaused(paused)
	return nil
}

// setPaused assumes mu is held and broadcasts only on change.
func (s *Session) setPaused(paused bool) {
	if s.paused == paused {
		return
	}
	s.paused = paused
	s.bcast.send(domain.ToEveryone, domain.Event{
		Type:    domain.EvtPauseState,
		Payload: domain.PauseState{Paused: paused},
	})
}

// LockRound force-ends the active question's answer window. Replaying the
// command after the window closed is dropped as stale, never applied twice.
func (s *Session) LockRound(round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if round != s.round || s.phase != domain.PhaseQuestionActive {
		return s.dropStale(domain.CmdLockRound, fmt.Sprintf("round %d", round))
	}
	s.timer.Cancel()
	s.lockCurrent()
	return nil
}

// lockCurrent transitions QUESTION_ACTIVE -> LOCKED. Assumes mu is held.
func (s *Session) lockCurrent() {
	s.gen++
	s.phase = domain.PhaseLocked
	s.answers.closeSoft(s.current.ID)
	s.bcast.send(domain.ToContestant, domain.Event{Type: domain.EvtLockInput})
	s.schedule(s.timing.RevealDelay, s.revealCurrent)
}

// revealCurrent transitions LOCKED -> REVEAL: the ledger hard-closes, each
// contestant sees their own provisionally graded result, displays get the
// canonical answer. Assumes mu is held.
func (s *Session) revealCurrent() {
	q := *s.current
	s.gen++
	s.phase = domain.PhaseReveal
	s.answers.closeHard(q.ID)

	key := domain.KeyForQuestion(q)
	for _, ans := range s.answers.all() {
		if ans.QuestionID != q.ID {
			continue
		}
		autoGrade(ans, q)
		s.persistAnswer(*ans)
		s.bcast.sendToPlayer(ans.PlayerName, domain.Event{
			Type: domain.EvtShowAnswer,
			Payload: domain.ShowAnswer{
				PlayerAnswer:  ans.Fields,
				CorrectAnswer: key,
				ArtistPoints:  ans.Scores[domain.FieldArtist],
				TitlePoints:   ans.Scores[domain.FieldTitle],
				ExtraPoints:   ans.Scores[domain.FieldExtra],
				SinglePoints:  ans.Scores[domain.FieldSingle],
				MaxPoints:     q.MaxPoints(),
			},
		})
	}
	s.bcast.send(domain.ToDisplay, domain.Event{
		Type:    domain.EvtShowCorrect,
		Payload: domain.ShowCorrect{Artist: key.Artist, Title: key.Title},
	})

	s.schedule(s.timing.GraceGap, s.advance)
}

// advance moves REVEAL -> next QUESTION_ACTIVE, or ROUND_SUMMARY when the
// round is exhausted. Assumes mu is held.
func (s *Session) advance() {
	if next, ok := s.seq.next(); ok {
		s.activateQuestion(next)
		return
	}
	s.gen++
	s.phase = domain.PhaseRoundSummary
	s.current = nil
	s.bcast.send(domain.ToContestant, s.contestantSummaryEvent())
	s.bcast.send(domain.ToDisplay, s.displaySummaryEvent())
}

// LockPlayer locks a single contestant for the remainder of the current
// question only, independent of the global LOCKED phase.
func (s *Session) LockPlayer(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.phase != domain.PhaseQuestionActive {
		return &domain.GuardError{Command: domain.CmdLockPlayer, Phase: s.phase, Reason: "no active question"}
	}
	if !s.players.lock(name, s.clock.Now()) {
		return domain.ErrPlayerNotFound
	}
	ans := s.answers.lockPlayer(name, *s.current, s.clock.Now())
	s.persistAnswer(*ans)

	s.bcast.sendToPlayer(name, domain.Event{Type: domain.EvtLockInput})
	s.bcast.send(domain.ToOperator, domain.Event{
		Type:    domain.EvtLockConfirmed,
		Payload: domain.LockConfirmed{Player: name},
	})
	s.bcast.send(domain.ToOperator, domain.Event{
		Type:    domain.EvtSinglePlayerUpdate,
		Payload: domain.SinglePlayerUpdate{Name: name, Status: domain.StatusLocked},
	})
	return nil
}

// DeletePlayer removes a contestant and their answers.
func (s *Session) DeletePlayer(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.players.delete(name) {
		return domain.ErrPlayerNotFound
	}
	s.answers.deletePlayer(name)
	delete(s.board, name)
	s.bcast.send(domain.ToOperator, domain.Event{
		Type:    domain.EvtUpdatePlayerList,
		Payload: s.players.snapshot(),
	})
	return nil
}

// RequestGrading auto-grades the round's locked answers (operator edits are
// preserved) and returns the gradable view.
func (s *Session) RequestGrading(round int) ([]domain.GradingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quiz.RoundByNumber(round); !ok {
		return nil, domain.ErrRoundNotFound
	}
	answers := s.lockedAnswers(round)
	for _, ans := range answers {
		q, ok := s.quiz.QuestionByID(ans.QuestionID)
		if !ok {
			continue
		}
		autoGrade(ans, q)
	}
	return gradingRows(s.quiz, answers), nil
}

// UpdateScore assigns one field score on an answer.
func (s *Session) UpdateScore(answerID string, field domain.ScoreField, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ans, ok := s.answers.byID(answerID)
	if !ok {
		return &domain.GradingRejectedError{Reason: domain.RejectUnknownAnswer}
	}
	q, ok := s.quiz.QuestionByID(ans.QuestionID)
	if !ok {
		return &domain.GradingRejectedError{Reason: domain.RejectUnknownAnswer}
	}
	if err := setScore(ans, q, field, value); err != nil {
		return err
	}
	s.persistScore(ans.ID, field, value)
	return nil
}

// FinalizeRound requires every field of every locked answer in the round to
// be graded, recomputes the leaderboard from scratch, and starts the next
// round's countdown (or finishes the event).
func (s *Session) FinalizeRound(round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseRoundSummary || round != s.round {
		return s.dropStale(domain.CmdFinalizeRound, fmt.Sprintf("round %d", round))
	}
	answers := s.lockedAnswers(round)
	if n := ungradedFields(s.quiz, answers); n > 0 {
		return domain.ErrIncompleteGrading
	}

	s.board = recomputeLeaderboard(s.players.names(), s.answers.all())
	for name, score := range s.board {
		if p, ok := s.players.get(name); ok {
			p.Score = score
		}
	}
	s.bcast.send(domain.ToEveryone, domain.Event{
		Type:    domain.EvtUpdateLeaderboard,
		Payload: s.board,
	})
	s.bcast.send(domain.ToOperator, domain.Event{
		Type:    domain.EvtUpdatePlayerList,
		Payload: s.players.snapshot(),
	})

	if next, ok := s.nextRound(round); ok {
		s.beginCountdown(next)
	} else {
		s.gen++
		s.cancelPending()
		s.phase = domain.PhaseFinished
	}
	return nil
}

func (s *Session) nextRound(after int) (domain.Round, bool) {
	for i, r := range s.quiz.Rounds {
		if r.Number == after && i+1 < len(s.quiz.Rounds) {
			return s.quiz.Rounds[i+1], true
		}
	}
	return domain.Round{}, false
}

// lockedAnswers assumes mu is held.
func (s *Session) lockedAnswers(round int) []*domain.Answer {
	all := s.answers.forRound(round)
	locked := all[:0]
	for _, ans := range all {
		if ans.Locked {
			locked = append(locked, ans)
		}
	}
	return locked
}

// --- contestant commands ---

// Join admits a contestant. New names register only while registrations are
// open; a known name may rejoin at any time with its pin.
func (s *Session) Join(name, pin string) (domain.PlayerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.players.get(name); !known && s.phase != domain.PhaseRegistrationOpen {
		return domain.PlayerInfo{}, &domain.GuardError{Command: domain.CmdJoin, Phase: s.phase, Reason: "registrations are closed"}
	}
	p, err := s.players.join(name, pin, s.clock.Now())
	if err != nil {
		return domain.PlayerInfo{}, err
	}
	s.bcast.send(domain.ToOperator, domain.Event{
		Type:    domain.EvtUpdatePlayerList,
		Payload: s.players.snapshot(),
	})
	return domain.PlayerInfo{Name: p.Name, Score: p.Score, Status: p.Status}, nil
}

// SubmitAnswer upserts a contestant's answer. Resubmission before lock
// overwrites the previous values; after lock it is rejected.
func (s *Session) SubmitAnswer(player, questionID string, fields domain.AnswerFields, submittedAt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players.get(player); !ok {
		return domain.ErrPlayerNotFound
	}
	if s.players.isLocked(player) {
		return &domain.AnswerRejectedError{Reason: domain.RejectLocked}
	}
	if s.current == nil || s.current.ID != questionID {
		return &domain.AnswerRejectedError{Reason: domain.RejectWrongPhase}
	}
	ans, err := s.answers.submit(player, *s.current, fields, submittedAt, s.clock.Now())
	if err != nil {
		return err
	}
	s.persistAnswer(*ans)
	return nil
}

// ActivitySignal updates presence and emits the incremental roster delta.
func (s *Session) ActivitySignal(name string, status domain.PlayerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status != domain.StatusActive && status != domain.StatusAway && status != domain.StatusOffline {
		return fmt.Errorf("unsupported activity status %q", status)
	}
	if _, ok := s.players.setStatus(name, status, s.clock.Now()); !ok {
		return domain.ErrPlayerNotFound
	}
	s.bcast.send(domain.ToOperator, domain.Event{
		Type:    domain.EvtSinglePlayerUpdate,
		Payload: domain.SinglePlayerUpdate{Name: name, Status: status},
	})
	return nil
}

// CheatDetected forwards the advisory signal to operators. It never gates or
// invalidates a submission.
func (s *Session) CheatDetected(notice domain.CheatNotice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Warn().
		Str("player", notice.PlayerName).
		Str("question", notice.QuestionID).
		Str("reason", notice.Reason).
		Msg("cheat signal received")
	s.bcast.send(domain.ToOperator, domain.Event{Type: domain.EvtCheatDetected, Payload: notice})
}

// --- scheduling plumbing ---

// handleTick runs on the timer goroutine. Every tick carries both remaining
// and total so a (re)joining client can render proportional state.
func (s *Session) handleTick(remaining, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bcast.send(domain.ToDisplay|domain.ToOperator, domain.Event{
		Type:    domain.EvtTimerUpdate,
		Payload: domain.TimerUpdate{Remaining: remaining, Total: total, Phase: s.phase},
	})
}

// handleExpire is the only trigger for the automatic LOCKED transition; it
// re-validates phase so a stale expiry is a no-op.
func (s *Session) handleExpire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.PhaseCountdown:
		if first, ok := s.seq.next(); ok {
			s.activateQuestion(first)
		} else {
			s.phase = domain.PhaseRoundSummary
		}
	case domain.PhaseQuestionActive:
		s.lockCurrent()
	}
}

// schedule arms a generation-guarded callback. Assumes mu is held.
func (s *Session) schedule(d time.Duration, fn func()) {
	s.cancelPending()
	gen := s.gen
	s.pending = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		fn()
	})
}

// cancelPending assumes mu is held.
func (s *Session) cancelPending() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// persistAnswer mirrors one answer row to durable storage without blocking
// the session. Assumes mu is held; the row is cloned so the goroutine never
// shares the live Scores map.
func (s *Session) persistAnswer(ans domain.Answer) {
	if s.store == nil {
		return
	}
	quizID := s.quiz.ID
	ans = ans.Clone()
	go func() {
		if err := s.store.SaveAnswer(context.Background(), quizID, ans); err != nil {
			s.log.Warn().Err(err).Str("player", ans.PlayerName).Str("question", ans.QuestionID).Msg("answer write-through failed")
		}
	}()
}

func (s *Session) persistScore(answerID string, field domain.ScoreField, value float64) {
	if s.store == nil {
		return
	}
	quizID := s.quiz.ID
	go func() {
		if err := s.store.SaveScore(context.Background(), quizID, answerID, field, value); err != nil {
			s.log.Warn().Err(err).Str("answer", answerID).Msg("score write-through failed")
		}
	}()
}

func (s *Session) dropStale(command, target string) error {
	s.log.Debug().Str("command", command).Str("target", target).Msg("stale command dropped")
	return &domain.StaleCommandError{Command: command, Target: target}
}
