package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"sarafan/internal/config"
	"sarafan/internal/handlers"
)

type jsonResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WebhookRequest - нормализованное входящее сообщение от шлюза мессенджера.
type WebhookRequest struct {
	ClientID string `json:"client_id"`
	Text     string `json:"text"`
	FromMe   bool   `json:"from_me"`
	FromName string `json:"from_name"`
}

// --- Вспомогательные функции для JSON-ответов ---
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(jsonResponse{Status: "ok", Message: message})
}

// WebhookHandler принимает сообщение и ставит его в обработку, не дожидаясь ответа бота.
func WebhookHandler(deps ApiDependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WebhookRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			log.Printf("WebhookHandler: Ошибка разбора запроса: %v", err)
			writeJSONError(w, http.StatusBadRequest, "Invalid data")
			return
		}

		clientID := config.NormalizeChatID(req.ClientID)
		if clientID == "" || strings.TrimSpace(req.Text) == "" {
			log.Println("WebhookHandler: Missing phone number or message in received data")
			writeJSONError(w, http.StatusBadRequest, "Invalid data")
			return
		}

		deps.Dispatcher.Dispatch(handlers.Inbound{
			ClientID:   clientID,
			Text:       req.Text,
			FromBot:    req.FromMe,
			SenderName: req.FromName,
		})
		writeJSONSuccess(w, http.StatusAccepted, "")
	}
}
