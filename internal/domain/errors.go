package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a live session has not been initialized.
	ErrSessionNotFound = errors.New("live session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a referenced question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrRoundNotFound indicates a referenced round number is invalid.
	ErrRoundNotFound = errors.New("round not found")
	// ErrPlayerNotFound is returned when a player acts before joining.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrWrongPin is returned when a rejoining player presents a mismatched pin.
	ErrWrongPin = errors.New("wrong pin")
	// ErrIncompleteGrading blocks finalize_round while any field is ungraded.
	ErrIncompleteGrading = errors.New("round has ungraded answer fields")
)

// GuardError rejects a command issued while unarmed or in a phase that does
// not accept it. It is reported back to the issuing operator only.
type GuardError struct {
	Command string
	Phase   Phase
	Reason  string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard rejected %s in phase %s: %s", e.Command, e.Phase, e.Reason)
}

// StaleCommandError marks a command referencing a round/question that is no
// longer current. Stale commands are dropped and logged, never applied twice.
type StaleCommandError struct {
	Command string
	Target  string
}

func (e *StaleCommandError) Error() string {
	return fmt.Sprintf("stale command %s targeting %s", e.Command, e.Target)
}

// AnswerRejectReason explains why a submission was refused.
type AnswerRejectReason string

const (
	RejectLocked     AnswerRejectReason = "locked"
	RejectWrongPhase AnswerRejectReason = "wrong_phase"
)

// AnswerRejectedError is returned to the submitting contestant only.
type AnswerRejectedError struct {
	Reason AnswerRejectReason
}

func (e *AnswerRejectedError) Error() string {
	return fmt.Sprintf("answer rejected: %s", e.Reason)
}

// GradingRejectReason explains why a score write was refused.
type GradingRejectReason string

const (
	RejectInvalidValue      GradingRejectReason = "invalid_value"
	RejectInapplicableField GradingRejectReason = "inapplicable_field"
	RejectUnknownAnswer     GradingRejectReason = "unknown_answer"
)

// GradingRejectedError is returned to the operator.
type GradingRejectedError struct {
	Reason GradingRejectReason
}

func (e *GradingRejectedError) Error() string {
	return fmt.Sprintf("grading rejected: %s", e.Reason)
}
