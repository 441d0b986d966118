package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
)

// PaymentAuditHandler consumes payment callback events and keeps an audit
// trail: structured logs plus an outcome counter. Orders are immutable
// after creation, so nothing here writes to the store.
type PaymentAuditHandler struct {
	outcomes *prometheus.CounterVec
	logger   *slog.Logger
}

func NewPaymentAuditHandler(registerer prometheus.Registerer, logger *slog.Logger) *PaymentAuditHandler {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boutique",
		Subsystem: "payments",
		Name:      "callback_events_total",
		Help:      "Payment processor callback events by type.",
	}, []string{"type"})
	registerer.MustRegister(outcomes)

	return &PaymentAuditHandler{
		outcomes: outcomes,
		logger:   logger,
	}
}

func (h *PaymentAuditHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.PaymentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment event: %w", err)
	}

	h.outcomes.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case "payment_intent.succeeded":
		h.logger.Info("payment confirmed by processor", "intent_id", event.IntentID, "at", event.Timestamp)
	case "payment_intent.payment_failed":
		h.logger.Warn("payment failed at processor", "intent_id", event.IntentID, "at", event.Timestamp)
	default:
		h.logger.Info("payment event recorded", "type", event.Type, "intent_id", event.IntentID)
	}

	return nil
}
