// Package http exposes the game over a websocket: one connection is one
// player, driving sessions with start/answer messages and receiving the
// session's event stream.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"retrotunes-service/internal/domain"
	"retrotunes-service/internal/game"
	"retrotunes-service/internal/ledger"
	"retrotunes-service/internal/sound"
	"retrotunes-service/internal/supply"
)

type WSHandler struct {
	supply   supply.Fetcher
	ledger   *ledger.Ledger
	sound    *sound.Service
	tuning   game.Tuning
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(fetcher supply.Fetcher, led *ledger.Ledger, snd *sound.Service, tuning game.Tuning, logger *zap.SugaredLogger) *WSHandler {
	return &WSHandler{
		supply: fetcher,
		ledger: led,
		sound:  snd,
		tuning: tuning,
		logger: logger,
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

type answerPayload struct {
	Option string `json:"option"`
}

type mutePayload struct {
	Muted bool `json:"muted"`
}

type cuePayload struct {
	Cue string `json:"cue"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the per-player message loop. Every
// write goes through a single writer goroutine so session events and reply
// messages never interleave on the wire.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	ctx := r.Context()

	send := make(chan outboundMessage[any], 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debugw("ws write error", "err", err)
				return
			}
		}
	}()

	enqueue := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}
	sendError := func(message string) {
		enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	}

	var (
		sess        *game.Session
		forwardDone chan struct{}
	)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if sess != nil && sess.State() != game.StateEnded {
				sendError("session already running")
				continue
			}
			var cfg domain.GameConfig
			if err := json.Unmarshal(inbound.Payload, &cfg); err != nil {
				sendError("invalid start payload")
				continue
			}
			newSess, err := game.NewSession(cfg, h.tuning, game.Deps{
				Supply: h.supply,
				Ledger: h.ledger,
				Logger: h.logger,
			})
			if err != nil {
				sendError(err.Error())
				continue
			}
			if err := h.ledger.SetPlayerName(ctx, cfg.PlayerName); err != nil {
				h.logger.Warnw("persist player name", "err", err)
			}
			if err := h.ledger.SetCategoryPreference(ctx, cfg.Category); err != nil {
				h.logger.Warnw("persist category preference", "err", err)
			}
			sess = newSess
			forwardDone = make(chan struct{})
			go sess.Run(ctx)
			go h.forward(r, sess, enqueue, forwardDone)

		case "answer":
			if sess == nil {
				sendError("no session")
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError("invalid answer payload")
				continue
			}
			if _, err := sess.Answer(ctx, payload.Option); err != nil {
				sendError(err.Error())
			}

		case "mute":
			var payload mutePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError("invalid mute payload")
				continue
			}
			if err := h.sound.SetMuted(ctx, payload.Muted); err != nil {
				h.logger.Warnw("persist mute preference", "err", err)
			}
			enqueue(outboundMessage[any]{Type: "muted", Payload: mutePayload{Muted: payload.Muted}})

		case "scores":
			enqueue(outboundMessage[any]{Type: "scores", Payload: h.ledger.Scores(ctx)})

		case "stop":
			if sess != nil {
				sess.Stop()
			}

		default:
			sendError("unsupported message type")
		}
	}

	if sess != nil {
		sess.Stop()
	}
	close(closeSignals)
	if forwardDone != nil {
		<-forwardDone
	}
	close(send)
	<-writerDone
}

// forward relays session events onto the wire, tagging each reveal with its
// sound cue. It drains until the session closes its stream.
func (h *WSHandler) forward(r *http.Request, sess *game.Session, enqueue func(outboundMessage[any]), done chan struct{}) {
	defer close(done)
	for e := range sess.Events() {
		enqueue(outboundMessage[any]{Type: string(e.Type), Payload: e})
		if e.Type == game.EventReveal && e.Reveal != nil {
			if cue := h.sound.CueFor(r.Context(), e.Reveal.Correct); cue != sound.CueNone {
				enqueue(outboundMessage[any]{Type: "cue", Payload: cuePayload{Cue: string(cue)}})
			}
		}
	}
}
