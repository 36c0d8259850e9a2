package domain

// Audience selects which channel classes receive an event.
type Audience int

const (
	ToOperator Audience = 1 << iota
	ToContestant
	ToDisplay

	ToEveryone = ToOperator | ToContestant | ToDisplay
)

// Event is one wire-level message fanned out to subscribers.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Operator -> core command names.
const (
	CmdArm                 = "arm"
	CmdToggleRegistrations = "toggle_registrations"
	CmdStartRound          = "start_round"
	CmdPlayQuestion        = "play_question"
	CmdTogglePause         = "toggle_pause"
	CmdLockRound           = "lock_round"
	CmdLockPlayer          = "lock_player"
	CmdDeletePlayer        = "delete_player"
	CmdRequestGrading      = "request_grading"
	CmdUpdateScore         = "update_score"
	CmdFinalizeRound       = "finalize_round"
)

// Contestant -> core message names.
const (
	CmdJoin           = "join"
	CmdSubmitAnswer   = "submit_answer"
	CmdActivityStatus = "activity_status"
	CmdCheatDetected  = "cheat_detected"
)

// Core -> client event names.
const (
	EvtPlayerListFull      = "player_list_full"
	EvtUpdatePlayerList    = "update_player_list"
	EvtSinglePlayerUpdate  = "single_player_update"
	EvtLockConfirmed       = "lock_confirmed"
	EvtReceiveGradingData  = "receive_grading_data"
	EvtLiveGuardBlocked    = "live_guard_blocked"
	EvtCheatDetected       = "cheat_detected"
	EvtJoinSuccess         = "join_success"
	EvtJoinError           = "join_error"
	EvtUnlockInput         = "unlock_input"
	EvtLockInput           = "lock_input"
	EvtShowAnswer          = "show_answer"
	EvtShowRoundSummary    = "show_round_summary"
	EvtPauseState          = "pause_state"
	EvtRoundCountdownStart = "round_countdown_start"
	EvtPlayMedia           = "play_media"
	EvtTimerUpdate         = "timer_update"
	EvtShowCorrect         = "show_correct"
	EvtShowWelcome         = "show_welcome"
	EvtUpdateLeaderboard   = "update_leaderboard"
)

// UnlockInput opens the answer sheet on contestant devices.
type UnlockInput struct {
	QuestionID        string       `json:"question_id"`
	QuestionType      QuestionType `json:"question_type"`
	Round             int          `json:"round"`
	QuestionIndex     int          `json:"question_index"`
	QuestionStartedAt float64      `json:"question_started_at"`
	Choices           []string     `json:"choices,omitempty"`
	QuestionText      string       `json:"question_text,omitempty"`
	ExtraQuestion     string       `json:"extra_question,omitempty"`
}

// PlayMedia is the single playback directive per active question. Start and
// duration come solely from the authored question record.
type PlayMedia struct {
	ID            string       `json:"id"`
	QuestionIndex int          `json:"question_index"`
	Round         int          `json:"round"`
	Artist        string       `json:"artist,omitempty"`
	Title         string       `json:"title,omitempty"`
	URL           string       `json:"url"`
	Start         float64      `json:"start"`
	Duration      float64      `json:"duration"`
	QuestionType  QuestionType `json:"question_type"`
	QuestionText  string       `json:"question_text,omitempty"`
	ExtraQuestion string       `json:"extra_question,omitempty"`
}

// TimerUpdate carries both remaining and total so a (re)joining client can
// render proportional state without history.
type TimerUpdate struct {
	Remaining int   `json:"remaining"`
	Total     int   `json:"total"`
	Phase     Phase `json:"phase"`
}

// ShowAnswer reveals a contestant's own graded result.
type ShowAnswer struct {
	PlayerAnswer  AnswerFields `json:"player_answer"`
	CorrectAnswer AnswerKey    `json:"correct_answer"`
	ArtistPoints  float64      `json:"artist_points"`
	TitlePoints   float64      `json:"title_points"`
	ExtraPoints   float64      `json:"extra_points"`
	SinglePoints  float64      `json:"single_points"`
	MaxPoints     float64      `json:"max_points"`
}

// ShowCorrect reveals the canonical answer on displays.
type ShowCorrect struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// RoundSummaryEntry is one revealed answer in a round summary.
type RoundSummaryEntry struct {
	QuestionIndex int       `json:"question_index"`
	Key           AnswerKey `json:"answer"`
}

// ShowRoundSummary closes out a round on contestant devices.
type ShowRoundSummary struct {
	Round   int                 `json:"round"`
	Answers []RoundSummaryEntry `json:"answers"`
}

// RoundSummaryBoard is the display rendition of the same summary; public
// screens list the revealed answers as songs.
type RoundSummaryBoard struct {
	Round int                 `json:"round"`
	Songs []RoundSummaryEntry `json:"songs"`
}

// ShowWelcome points joiners at the event while registrations are open.
type ShowWelcome struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// PauseState mirrors the orthogonal paused flag.
type PauseState struct {
	Paused bool `json:"paused"`
}

// RoundCountdownStart announces the pre-round countdown.
type RoundCountdownStart struct {
	Round int `json:"round"`
}

// PlayerInfo is the roster view of one contestant.
type PlayerInfo struct {
	Name   string       `json:"name"`
	Score  float64      `json:"score"`
	Status PlayerStatus `json:"status"`
}

// SinglePlayerUpdate is the incremental roster delta.
type SinglePlayerUpdate struct {
	Name   string       `json:"name"`
	Status PlayerStatus `json:"status"`
}

// LockConfirmed acknowledges a single-player lock to the operator.
type LockConfirmed struct {
	Player string `json:"player"`
}

// GuardBlocked tells the issuing operator why a live command was refused.
type GuardBlocked struct {
	Message string `json:"message"`
}

// GradingRow is one gradable (question, player) pair sent to the operator.
type GradingRow struct {
	AnswerID      string        `json:"answer_id"`
	Player        string        `json:"player"`
	QuestionID    string        `json:"question_id"`
	QuestionIndex int           `json:"question_index"`
	QuestionType  QuestionType  `json:"question_type"`
	Guess         AnswerFields  `json:"guess"`
	Key           AnswerKey     `json:"correct_answer"`
	Scores        map[ScoreField]*float64 `json:"scores"`
	SubmittedAt   float64       `json:"submission_time"`
}

// CheatNotice forwards an advisory anti-cheat signal to operators. It never
// invalidates a submission by itself.
type CheatNotice struct {
	PlayerName string  `json:"player_name"`
	QuestionID string  `json:"question_id"`
	Reason     string  `json:"reason"`
	Timestamp  float64 `json:"timestamp"`
}
