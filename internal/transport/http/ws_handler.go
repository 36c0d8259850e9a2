package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.LiveService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LiveService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type armPayload struct {
	Armed bool `json:"armed"`
}

type registrationsPayload struct {
	Open bool `json:"open"`
}

type roundPayload struct {
	Round int `json:"round"`
}

type questionPayload struct {
	QuestionID string `json:"question_id"`
}

type pausePayload struct {
	Paused bool `json:"paused"`
}

type playerNamePayload struct {
	Name string `json:"name"`
}

type updateScorePayload struct {
	AnswerID string  `json:"answer_id"`
	Field    string  `json:"field"`
	Value    float64 `json:"value"`
}

type joinPayload struct {
	Name string `json:"name"`
	Pin  string `json:"pin"`
}

type submitAnswerPayload struct {
	QuestionID  string              `json:"question_id"`
	Fields      domain.AnswerFields `json:"fields"`
	SubmittedAt float64             `json:"submitted_at"`
}

type activityPayload struct {
	Status string `json:"status"`
}

// wsConn serializes all writes on one websocket through a single goroutine
// and fans the session's event stream into the same channel.
type wsConn struct {
	conn       *websocket.Conn
	send       chan outboundMessage
	done       chan struct{}
	writerDone chan struct{}
	pumpDone   chan struct{}
	log        zerolog.Logger
}

func newWSConn(conn *websocket.Conn, sub *app.Subscription, log zerolog.Logger) *wsConn {
	c := &wsConn{
		conn:       conn,
		send:       make(chan outboundMessage, 16),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		pumpDone:   make(chan struct{}),
		log:        log,
	}

	go func() {
		defer close(c.writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				c.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(c.pumpDone)
		for {
			select {
			case evt, ok := <-sub.Events():
				if !ok {
					return
				}
				select {
				case c.send <- outboundMessage{Type: evt.Type, Payload: evt.Payload}:
				case <-c.done:
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	return c
}

func (c *wsConn) reply(msgType string, payload any) {
	select {
	case c.send <- outboundMessage{Type: msgType, Payload: payload}:
	case <-c.done:
	}
}

func (c *wsConn) close() {
	close(c.done)
	<-c.pumpDone
	close(c.send)
	<-c.writerDone
}

func (h *WSHandler) open(w http.ResponseWriter, r *http.Request, audience domain.Audience) (*wsConn, *app.Subscription, bool) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return nil, nil, false
	}

	session, err := h.service.Open(r.Context(), quizID)
	if err != nil {
		h.log.Warn().Err(err).Str("quiz_id", quizID).Msg("session open failed")
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, nil, false
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws upgrade failed")
		return nil, nil, false
	}

	sub := session.Subscribe(audience)
	return newWSConn(conn, sub, h.log), sub, true
}

// ServeOperator handles the control channel. Commands are dispatched into
// the session; guard rejections go back to the issuing connection only and
// stale commands are dropped.
func (h *WSHandler) ServeOperator(w http.ResponseWriter, r *http.Request) {
	c, sub, ok := h.open(w, r, domain.ToOperator)
	if !ok {
		return
	}
	defer c.conn.Close()
	defer c.close()
	defer sub.Cancel()

	quizID := r.URL.Query().Get("quizId")
	session, err := h.service.Get(quizID)
	if err != nil {
		return
	}

	for {
		var inbound inboundMessage
		if err := c.conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.dispatchOperator(c, session, inbound)
	}
}

func (h *WSHandler) dispatchOperator(c *wsConn, session *app.Session, inbound inboundMessage) {
	var err error

	switch inbound.Type {
	case domain.CmdArm:
		var p armPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			session.Arm(p.Armed)
		}
	case domain.CmdToggleRegistrations:
		var p registrationsPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.ToggleRegistrations(p.Open)
		}
	case domain.CmdStartRound:
		var p roundPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.StartRound(p.Round)
		}
	case domain.CmdPlayQuestion:
		var p questionPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.PlayQuestion(p.QuestionID)
		}
	case domain.CmdTogglePause:
		var p pausePayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.TogglePause(p.Paused)
		}
	case domain.CmdLockRound:
		var p roundPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.LockRound(p.Round)
		}
	case domain.CmdLockPlayer:
		var p playerNamePayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.LockPlayer(p.Name)
		}
	case domain.CmdDeletePlayer:
		var p playerNamePayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.DeletePlayer(p.Name)
		}
	case domain.CmdRequestGrading:
		var p roundPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			var rows []domain.GradingRow
			if rows, err = session.RequestGrading(p.Round); err == nil {
				c.reply(domain.EvtReceiveGradingData, rows)
			}
		}
	case domain.CmdUpdateScore:
		var p updateScorePayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.UpdateScore(p.AnswerID, domain.ScoreField(p.Field), p.Value)
		}
	case domain.CmdFinalizeRound:
		var p roundPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = session.FinalizeRound(p.Round)
		}
	default:
		c.reply("error", errorPayload{Message: "unsupported message type"})
		return
	}

	if err != nil {
		h.replyOperatorError(c, inbound.Type, err)
	}
}

func (h *WSHandler) replyOperatorError(c *wsConn, command string, err error) {
	var guard *domain.GuardError
	var stale *domain.StaleCommandError
	var grading *domain.GradingRejectedError

	switch {
	case errors.As(err, &guard):
		c.reply(domain.EvtLiveGuardBlocked, domain.GuardBlocked{Message: guard.Error()})
	case errors.As(err, &stale):
		// Already logged by the session; nothing goes on the wire.
	case errors.As(err, &grading):
		c.reply("error", errorPayload{Message: grading.Error()})
	default:
		h.log.Debug().Err(err).Str("command", command).Msg("operator command failed")
		c.reply("error", errorPayload{Message: err.Error()})
	}
}

// ServePlayer handles a contestant connection. The first accepted join binds
// the connection to the player name for targeted events.
func (h *WSHandler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	c, sub, ok := h.open(w, r, domain.ToContestant)
	if !ok {
		return
	}
	defer c.conn.Close()
	defer c.close()
	defer sub.Cancel()

	quizID := r.URL.Query().Get("quizId")
	session, err := h.service.Get(quizID)
	if err != nil {
		return
	}

	var boundPlayer string
	defer func() {
		if boundPlayer != "" {
			_ = session.ActivitySignal(boundPlayer, domain.StatusOffline)
		}
	}()

	for {
		var inbound inboundMessage
		if err := c.conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case domain.CmdJoin:
			var p joinPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				c.reply(domain.EvtJoinError, errorPayload{Message: "invalid join payload"})
				continue
			}
			info, err := session.Join(p.Name, p.Pin)
			if err != nil {
				c.reply(domain.EvtJoinError, errorPayload{Message: err.Error()})
				continue
			}
			boundPlayer = info.Name
			c.reply(domain.EvtJoinSuccess, info)
			sub.BindPlayer(info.Name)
		case domain.CmdSubmitAnswer:
			if boundPlayer == "" {
				c.reply("error", errorPayload{Message: "join first"})
				continue
			}
			p := submitAnswerPayload{Fields: domain.AnswerFields{Choice: domain.NoChoice}}
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				c.reply("error", errorPayload{Message: "invalid answer payload"})
				continue
			}
			if err := session.SubmitAnswer(boundPlayer, p.QuestionID, p.Fields, p.SubmittedAt); err != nil {
				c.reply("error", errorPayload{Message: err.Error()})
			}
		case domain.CmdActivityStatus:
			if boundPlayer == "" {
				continue
			}
			var p activityPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			if err := session.ActivitySignal(boundPlayer, domain.PlayerStatus(p.Status)); err != nil {
				h.log.Debug().Err(err).Str("player", boundPlayer).Msg("activity signal rejected")
			}
		case domain.CmdCheatDetected:
			if boundPlayer == "" {
				continue
			}
			var p domain.CheatNotice
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			p.PlayerName = boundPlayer
			session.CheatDetected(p)
		default:
			c.reply("error", errorPayload{Message: "unsupported message type"})
		}
	}
}

// ServeScreen handles the shared display. It is receive only; inbound frames
// are read and discarded so pings and close frames are processed.
func (h *WSHandler) ServeScreen(w http.ResponseWriter, r *http.Request) {
	c, sub, ok := h.open(w, r, domain.ToDisplay)
	if !ok {
		return
	}
	defer c.conn.Close()
	defer c.close()
	defer sub.Cancel()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
