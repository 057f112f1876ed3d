package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bellavita/internal/auth"
	"bellavita/internal/config"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://graph.facebook.com"

// Client talks to the WhatsApp Cloud API for one business phone number.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	version       string
	phoneNumberID string
	tokens        auth.TokenProvider
	logger        zerolog.Logger
}

func NewClient(cfg config.WhatsAppConfig, tokens auth.TokenProvider, logger *zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v21.0"
	}
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "whatsapp").Logger()
	}
	return &Client{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		baseURL:       baseURL,
		version:       version,
		phoneNumberID: cfg.PhoneNumberID,
		tokens:        tokens,
		logger:        l,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to,omitempty"`
	Type             string    `json:"type,omitempty"`
	Text             *textBody `json:"text,omitempty"`

	Status          string           `json:"status,omitempty"`
	MessageID       string           `json:"message_id,omitempty"`
	TypingIndicator *typingIndicator `json:"typing_indicator,omitempty"`
}

type typingIndicator struct {
	Type string `json:"type"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// SendText delivers a plain text message and returns the message id the API
// assigned.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	resp, err := c.post(ctx, sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp api returned no message id")
	}

	c.logger.Debug().Str("to", to).Str("message_id", resp.Messages[0].ID).Msg("message sent")
	return resp.Messages[0].ID, nil
}

// MarkRead acknowledges an inbound message, optionally showing the typing
// indicator while a reply is being prepared.
func (c *Client) MarkRead(ctx context.Context, messageID string, withTyping bool) error {
	req := sendRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	}
	if withTyping {
		req.TypingIndicator = &typingIndicator{Type: "text"}
	}
	_, err := c.post(ctx, req)
	return err
}

func (c *Client) post(ctx context.Context, payload sendRequest) (*sendResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp sendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		if resp.Error != nil {
			return nil, fmt.Errorf("whatsapp api error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return nil, fmt.Errorf("whatsapp api returned status %d", httpResp.StatusCode)
	}
	return &resp, nil
}
