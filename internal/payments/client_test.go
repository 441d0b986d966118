package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_CreateIntent(t *testing.T) {
	t.Run("creates an intent for the amount", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/payment_intents" {
				t.Errorf("expected /v1/payment_intents, got %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
				t.Errorf("unexpected authorization header: %s", got)
			}

			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if got := r.PostForm.Get("amount"); got != "4000" {
				t.Errorf("expected amount 4000, got %s", got)
			}
			if got := r.PostForm.Get("currency"); got != "gbp" {
				t.Errorf("expected currency gbp, got %s", got)
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_abc","amount":4000,"currency":"gbp"}`))
		}))
		defer server.Close()

		client := NewClient("sk_test_123", WithAPIBase(server.URL), WithHTTPClient(server.Client()))

		intent, err := client.CreateIntent(context.Background(), 4000, "gbp")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.ID != "pi_123" {
			t.Errorf("expected intent id pi_123, got %s", intent.ID)
		}
		if intent.ClientSecret != "pi_123_secret_abc" {
			t.Errorf("unexpected client secret: %s", intent.ClientSecret)
		}
	})

	t.Run("surfaces API errors with status and message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined."}}`))
		}))
		defer server.Close()

		client := NewClient("sk_test_123", WithAPIBase(server.URL), WithHTTPClient(server.Client()))

		_, err := client.CreateIntent(context.Background(), 4000, "gbp")

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusPaymentRequired {
			t.Errorf("expected status 402, got %d", apiErr.StatusCode)
		}
		if apiErr.Message != "Your card was declined." {
			t.Errorf("unexpected message: %s", apiErr.Message)
		}
	})

	t.Run("fails when the processor is unreachable", func(t *testing.T) {
		client := NewClient("sk_test_123", WithAPIBase("http://127.0.0.1:1"))

		if _, err := client.CreateIntent(context.Background(), 4000, "gbp"); err == nil {
			t.Error("expected error for unreachable processor")
		}
	})
}
