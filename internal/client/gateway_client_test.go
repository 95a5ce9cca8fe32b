package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/expertec/vev-crm-sub000/internal/model"
)

func TestGatewayClient_SendText_Accepted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/send/text" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body["phoneNumber"] != "+5215551234" || body["message"] != "hola" {
			t.Fatalf("unexpected request body: %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":   "Accepted",
			"messageId": "3A0E4F2B",
		})
	}))
	t.Cleanup(srv.Close)

	c := NewGatewayClient(srv.URL)

	id, err := c.SendText(context.Background(), "+5215551234", "hola")
	if err != nil {
		t.Fatalf("SendText() error: %v", err)
	}
	if id != "3A0E4F2B" {
		t.Fatalf("unexpected messageId: %q", id)
	}
}

func TestGatewayClient_SendMedia_Accepted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/send/media" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body["mediaType"] != "video_note" {
			t.Fatalf("unexpected mediaType: %q", body["mediaType"])
		}
		if body["url"] != "https://cdn.example.com/v.mp4" {
			t.Fatalf("unexpected url: %q", body["url"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"messageId": "media-1"})
	}))
	t.Cleanup(srv.Close)

	c := NewGatewayClient(srv.URL)

	id, err := c.SendMedia(context.Background(), "+5215551234", model.TypeVideoNote, "https://cdn.example.com/v.mp4")
	if err != nil {
		t.Fatalf("SendMedia() error: %v", err)
	}
	if id != "media-1" {
		t.Fatalf("unexpected messageId: %q", id)
	}
}

func TestGatewayClient_NonAcceptedStatusIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := NewGatewayClient(srv.URL)

	if _, err := c.SendText(context.Background(), "+5215551234", "hola"); err == nil {
		t.Fatalf("expected error for non-202 status")
	}
}

func TestGatewayClient_MissingMessageIDIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "Accepted"})
	}))
	t.Cleanup(srv.Close)

	c := NewGatewayClient(srv.URL)

	if _, err := c.SendText(context.Background(), "+5215551234", "hola"); err == nil {
		t.Fatalf("expected error for missing messageId")
	}
}

func TestGatewayClient_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	c := NewGatewayClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.SendText(ctx, "+5215551234", "hola"); err == nil {
		t.Fatalf("expected error due to canceled context")
	}
}
