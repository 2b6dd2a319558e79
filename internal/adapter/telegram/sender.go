package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Sender delivers replies through the Bot API sendMessage method.
type Sender struct {
	client  *http.Client
	apiBase string
	token   string
}

func NewSender(token string) *Sender {
	return &Sender{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiBase: defaultAPIBase,
		token:   token,
	}
}

// NewSenderWithBase is used by tests to point at a local server.
func NewSenderWithBase(token, apiBase string) *Sender {
	s := NewSender(token)
	s.apiBase = apiBase
	return s
}

func (s *Sender) SendMessage(ctx context.Context, userID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": userID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
