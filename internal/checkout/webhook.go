package checkout

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/payments"
)

const signatureHeader = "Stripe-Signature"

// EventVerifier checks a signed callback payload and decodes the event.
type EventVerifier func(payload []byte, sigHeader string) (payments.Event, error)

// WebhookHandler accepts asynchronous payment-status callbacks from the
// processor. It acknowledges every verified event and never reconciles
// against stored orders; duplicate deliveries just log twice.
type WebhookHandler struct {
	signingSecret string
	verify        EventVerifier
	publisher     Publisher
	logger        *slog.Logger
}

func NewWebhookHandler(signingSecret string, verify EventVerifier, publisher Publisher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		signingSecret: signingSecret,
		verify:        verify,
		publisher:     publisher,
		logger:        logger,
	}
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// No secret provisioned: acknowledge without verifying or processing.
	if h.signingSecret == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	event, err := h.verify(payload, r.Header.Get(signatureHeader))
	if err != nil {
		h.logger.Error("webhook verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		h.logger.Info("payment succeeded", "intent_id", event.IntentID())
		h.publishPaymentEvent(r, event)
	case "payment_intent.payment_failed":
		h.logger.Info("payment failed", "intent_id", event.IntentID())
		h.publishPaymentEvent(r, event)
	default:
		h.logger.Info("unhandled webhook event", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) publishPaymentEvent(r *http.Request, event payments.Event) {
	if h.publisher == nil {
		return
	}

	intentID := event.IntentID()
	paymentEvent := domain.PaymentEvent{
		Type:      event.Type,
		IntentID:  intentID,
		Timestamp: time.Now().UTC(),
	}
	if err := h.publisher.Publish(r.Context(), intentID, paymentEvent); err != nil {
		h.logger.Error("failed to publish payment event", "error", err, "intent_id", intentID)
	}
}
