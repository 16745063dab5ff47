// Package whatsapp delivers notification messages through the WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dirtsid3r/cellflip/internal/domain/notifications"
)

// CloudSender posts text messages to the Cloud API messages endpoint.
type CloudSender struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewCloudSender targets baseURL/<phoneNumberID>/messages.
func NewCloudSender(baseURL, phoneNumberID, token string) *CloudSender {
	return &CloudSender{
		endpoint: strings.TrimRight(baseURL, "/") + "/" + phoneNumberID + "/messages",
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type textBody struct {
	Body string `json:"body"`
}

type messageRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

func (s *CloudSender) Send(ctx context.Context, msg notifications.Message) error {
	body, err := json.Marshal(messageRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(msg.To, "+"),
		Type:             "text",
		Text:             textBody{Body: msg.Text},
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg notifications.Message) error {
	s.logger.Info("whatsapp message", "to", msg.To, "text", msg.Text)
	return nil
}
