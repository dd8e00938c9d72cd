// Package messaging доставляет ответы клиентам через внешний шлюз мессенджера.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"sarafan/internal/common"
)

// OutboundMessage - одно исходящее сообщение клиенту.
type OutboundMessage struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Template string `json:"template"`
	Text     string `json:"text"`
}

// NewOutboundMessage создает сообщение с новым идентификатором.
func NewOutboundMessage(clientID, template, text string) OutboundMessage {
	return OutboundMessage{
		ID:       uuid.NewString(),
		ClientID: clientID,
		Template: template,
		Text:     text,
	}
}

// Sender отправляет сообщения клиентам.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// LogSender только пишет сообщения в лог. Используется, когда шлюз не настроен.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg OutboundMessage) error {
	log.Printf("LogSender: [%s] -> %s (%s): %s", msg.ID, msg.ClientID, msg.Template, msg.Text)
	return nil
}

// HTTPSender отправляет сообщения POST-запросом в шлюз.
type HTTPSender struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPSender создает HTTPSender. httpClient может быть nil.
func NewHTTPSender(url, token string, httpClient *http.Client) *HTTPSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSender{url: url, token: token, client: httpClient}
}

func (s *HTTPSender) Send(ctx context.Context, msg OutboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("HTTPSender: ошибка сериализации сообщения: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPSender: ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPSender: %w: %v", common.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTPSender: %w: статус %d: %s", common.ErrExternalService, resp.StatusCode, string(respBody))
	}
	return nil
}
