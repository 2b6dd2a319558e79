package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Relayn/warehouse-bot/internal/core/domain"
	"github.com/Relayn/warehouse-bot/internal/core/service"
	"github.com/Relayn/warehouse-bot/internal/port"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// update is the subset of a Telegram update the bot cares about.
type update struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text     string `json:"text"`
		Entities []struct {
			Type   string `json:"type"`
			Offset int    `json:"offset"`
		} `json:"entities"`
	} `json:"message"`
}

// WebhookHandler authenticates Bot API callbacks, converts them to
// inbound events, and sends the engine's reply back out.
type WebhookHandler struct {
	engine        *service.Engine
	sender        port.Sender
	botToken      string
	webhookSecret string
	logger        *zap.Logger
}

func NewWebhookHandler(engine *service.Engine, sender port.Sender, botToken, webhookSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		engine:        engine,
		sender:        sender,
		botToken:      botToken,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Register mounts the webhook and health endpoints.
func (h *WebhookHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /telegram/webhook/{token}", h.Webhook)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("token") != h.botToken {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid token"})
		return
	}
	if r.Header.Get(secretTokenHeader) != h.webhookSecret {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid secret token"})
		return
	}

	var upd update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid update body"})
		return
	}

	// Updates without a text message (edits, joins, stickers) are
	// acknowledged and ignored so Telegram does not redeliver them.
	if upd.Message.Chat.ID == 0 || upd.Message.Text == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	ev := domain.InboundEvent{
		UserID:    strconv.FormatInt(upd.Message.Chat.ID, 10),
		Text:      upd.Message.Text,
		IsCommand: isCommandUpdate(upd),
	}

	reply := h.engine.HandleEvent(r.Context(), ev)

	if err := h.sender.SendMessage(r.Context(), ev.UserID, reply); err != nil {
		h.logger.Error("send reply failed",
			zap.String("user_id", ev.UserID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func isCommandUpdate(upd update) bool {
	for _, e := range upd.Message.Entities {
		if e.Type == "bot_command" && e.Offset == 0 {
			return true
		}
	}
	return strings.HasPrefix(upd.Message.Text, "/")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
