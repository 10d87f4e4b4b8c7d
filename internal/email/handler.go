package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
)

// Handler is a development email sink: it accepts send requests, logs them,
// and keeps the last few in memory so tests and local debugging can inspect
// what would have been sent. No real mail leaves the process.
type Handler struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.To == "" || req.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "to and subject are required")
		return
	}

	h.mu.Lock()
	h.sent = append(h.sent, req)
	if len(h.sent) > 100 {
		h.sent = h.sent[len(h.sent)-100:]
	}
	h.mu.Unlock()

	h.logger.Info("email sent", "to", req.To, "subject", req.Subject)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) HandleListSent(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	out := make([]Message, len(h.sent))
	copy(out, h.sent)
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
