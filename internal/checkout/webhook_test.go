package checkout

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/payments"
)

const webhookSecret = "whsec_test"

func signedRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", payments.SigHeader(webhookSecret, time.Now().Unix(), []byte(payload)))
	return req
}

func TestWebhookHandler(t *testing.T) {
	succeeded := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`

	t.Run("no signing secret acknowledges without verifying", func(t *testing.T) {
		verifierCalled := false
		verify := func(payload []byte, sigHeader string) (payments.Event, error) {
			verifierCalled = true
			return payments.Event{}, nil
		}
		handler := NewWebhookHandler("", verify, nil, discardLogger())

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(succeeded))
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if verifierCalled {
			t.Error("expected verifier to never be invoked")
		}
	})

	t.Run("valid signature returns 200", func(t *testing.T) {
		verifier := payments.NewVerifier(webhookSecret)
		handler := NewWebhookHandler(webhookSecret, verifier.ConstructEvent, nil, discardLogger())

		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, succeeded))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("altered signature returns 400", func(t *testing.T) {
		verifier := payments.NewVerifier(webhookSecret)
		handler := NewWebhookHandler(webhookSecret, verifier.ConstructEvent, nil, discardLogger())

		req := signedRequest(t, succeeded)
		header := req.Header.Get("Stripe-Signature")
		if strings.HasSuffix(header, "0") {
			header = header[:len(header)-1] + "1"
		} else {
			header = header[:len(header)-1] + "0"
		}
		req.Header.Set("Stripe-Signature", header)

		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("malformed payload returns 400", func(t *testing.T) {
		verifier := payments.NewVerifier(webhookSecret)
		handler := NewWebhookHandler(webhookSecret, verifier.ConstructEvent, nil, discardLogger())

		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, `{not json`))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("unrecognized event types still return 200", func(t *testing.T) {
		verifier := payments.NewVerifier(webhookSecret)
		publisher := &fakePublisher{}
		handler := NewWebhookHandler(webhookSecret, verifier.ConstructEvent, publisher, discardLogger())

		payload := `{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, payload))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if len(publisher.events) != 0 {
			t.Errorf("expected no published events for unrecognized type, got %d", len(publisher.events))
		}
	})

	t.Run("payment events are published when a producer is wired", func(t *testing.T) {
		verifier := payments.NewVerifier(webhookSecret)
		publisher := &fakePublisher{}
		handler := NewWebhookHandler(webhookSecret, verifier.ConstructEvent, publisher, discardLogger())

		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, succeeded))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if len(publisher.events) != 1 {
			t.Fatalf("expected 1 published event, got %d", len(publisher.events))
		}
		event, ok := publisher.events[0].(domain.PaymentEvent)
		if !ok {
			t.Fatalf("unexpected event type %T", publisher.events[0])
		}
		if event.IntentID != "pi_123" {
			t.Errorf("expected intent id pi_123, got %s", event.IntentID)
		}
	})

	t.Run("verifier errors map to 400", func(t *testing.T) {
		verify := func([]byte, string) (payments.Event, error) {
			return payments.Event{}, errors.New("boom")
		}
		handler := NewWebhookHandler(webhookSecret, verify, nil, discardLogger())

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(succeeded))
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}
