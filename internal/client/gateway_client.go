package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/expertec/vev-crm-sub000/internal/model"
)

// GatewayClient talks to the messaging-gateway webhook that owns the actual
// chat-transport connection.
type GatewayClient struct {
	baseURL string
	client  *http.Client
}

func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type textRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type mediaRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	MediaType   string `json:"mediaType"`
	URL         string `json:"url"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

func (c *GatewayClient) SendText(ctx context.Context, phone, text string) (string, error) {
	return c.post(ctx, "/v1/send/text", textRequest{
		PhoneNumber: phone,
		Message:     text,
	})
}

func (c *GatewayClient) SendMedia(ctx context.Context, phone string, mediaType model.MessageType, url string) (string, error) {
	return c.post(ctx, "/v1/send/media", mediaRequest{
		PhoneNumber: phone,
		MediaType:   string(mediaType),
		URL:         url,
	})
}

func (c *GatewayClient) post(ctx context.Context, path string, payload any) (string, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("missing messageId in response body=%q", string(body))
	}

	return sr.MessageID, nil
}
