package domain

// Phase is the session state machine's current state. The armed and paused
// flags are orthogonal: paused may only be set while in PhaseCountdown or
// PhaseQuestionActive.
type Phase string

const (
	PhaseIdle             Phase = "IDLE"
	PhaseRegistrationOpen Phase = "REGISTRATION_OPEN"
	PhaseCountdown        Phase = "COUNTDOWN"
	PhaseQuestionActive   Phase = "QUESTION_ACTIVE"
	PhaseLocked           Phase = "LOCKED"
	PhaseReveal           Phase = "REVEAL"
	PhaseRoundSummary     Phase = "ROUND_SUMMARY"
	PhaseFinished         Phase = "FINISHED"
)

// Pausable reports whether toggle_pause is accepted in this phase.
func (p Phase) Pausable() bool {
	return p == PhaseCountdown || p == PhaseQuestionActive
}
