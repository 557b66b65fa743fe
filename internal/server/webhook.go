package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lithammer/shortuuid/v3"

	"supportbot/internal/model"
	"supportbot/internal/orchestrator"
)

const maxPayloadBytes = 1 << 20

type webhookResponse struct {
	Delivery string `json:"delivery"`
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
}

func (r *Runtime) handleWebhook(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read payload")
		return
	}
	if !r.verifySignature(req.Header.Get("X-Hub-Signature-256"), body) {
		writeError(w, http.StatusUnauthorized, "signature mismatch")
		return
	}

	// GitHub sends its own delivery id; keep it for log correlation and
	// mint one when a caller (curl, replay script) omits it.
	delivery := req.Header.Get("X-GitHub-Delivery")
	if delivery == "" {
		delivery = shortuuid.New()
	}

	eventName := req.Header.Get("X-GitHub-Event")
	if !model.RelevantEvent(eventName) {
		writeJSON(w, http.StatusOK, webhookResponse{Delivery: delivery, Action: string(orchestrator.ActionDropped), Reason: "irrelevant event"})
		return
	}
	event, err := model.ParseEvent(eventName, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("%s/%s#%d", event.Repository.Owner.Login, event.Repository.Name, event.Issue.Number)
	unlock := r.locks.lock(key)
	defer unlock()

	outcome, err := r.service.ProcessEvent(req.Context(), event)
	if err != nil {
		r.logger.Printf("delivery=%s ticket=%s error: %v", delivery, key, err)
		writeError(w, http.StatusBadGateway, "processing failed")
		return
	}
	r.logger.Printf("delivery=%s ticket=%s action=%s reason=%q", delivery, key, outcome.Action, outcome.Reason)
	writeJSON(w, http.StatusOK, webhookResponse{Delivery: delivery, Action: string(outcome.Action), Reason: outcome.Reason})
}

// verifySignature checks the hex HMAC-SHA256 GitHub puts in
// X-Hub-Signature-256. An empty configured secret disables verification
// for local runs.
func (r *Runtime) verifySignature(header string, body []byte) bool {
	if r.opts.WebhookSecret == "" {
		return true
	}
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	mac := hmac.New(sha256.New, []byte(r.opts.WebhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header[len(prefix):]), []byte(want))
}

func (r *Runtime) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"started_at": r.startedAt,
		"now":        time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
