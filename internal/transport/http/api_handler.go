package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"retrotunes-service/internal/ledger"
)

// APIHandler serves the scoreboard and player preferences over plain HTTP,
// for clients that only need a snapshot rather than a live session.
type APIHandler struct {
	ledger *ledger.Ledger
	logger *zap.SugaredLogger
}

func NewAPIHandler(led *ledger.Ledger, logger *zap.SugaredLogger) *APIHandler {
	return &APIHandler{ledger: led, logger: logger}
}

type preferencesPayload struct {
	PlayerName string `json:"playerName"`
	Category   string `json:"category"`
	Muted      bool   `json:"muted"`
}

// ServeScores handles GET (top scores, best first) and DELETE (clear scores
// and played history, preferences untouched).
func (h *APIHandler) ServeScores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.ledger.Scores(r.Context()))
	case http.MethodDelete:
		if err := h.ledger.Reset(r.Context()); err != nil {
			h.logger.Warnw("reset ledger", "err", err)
			http.Error(w, "reset failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServePreferences returns the persisted player preferences.
func (h *APIHandler) ServePreferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	writeJSON(w, preferencesPayload{
		PlayerName: h.ledger.PlayerName(ctx),
		Category:   string(h.ledger.CategoryPreference(ctx)),
		Muted:      h.ledger.Muted(ctx),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
