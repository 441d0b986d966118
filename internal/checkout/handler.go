package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/bag"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/email"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/payments"
)

const sessionCookie = "boutique_session"

// SessionStore holds the per-session bag and flash messages. Implemented
// by *bag.Store.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (domain.Cart, error)
	Clear(ctx context.Context, sessionID string) error
	PushFlash(ctx context.Context, sessionID, message string) error
	PopFlashes(ctx context.Context, sessionID string) ([]string, error)
}

// IntentCreator obtains a payment intent sized in minor currency units.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (*payments.Intent, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order, cart domain.Cart) error
	GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	MarkEmailSent(ctx context.Context, orderID int64) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Config struct {
	StripePublicKey       string
	Currency              string
	FreeDeliveryThreshold decimal.Decimal
	DeliveryPercentage    decimal.Decimal
	FromEmail             string
}

type Handler struct {
	sessions  SessionStore
	catalog   bag.ProductCatalog
	intents   IntentCreator
	orders    OrderStore
	sender    email.Sender
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
}

// NewHandler wires the checkout flow. publisher may be nil when no broker
// is configured; order events are then skipped.
func NewHandler(sessions SessionStore, catalog bag.ProductCatalog, intents IntentCreator, orders OrderStore, sender email.Sender, publisher Publisher, cfg Config, logger *slog.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		catalog:   catalog,
		intents:   intents,
		orders:    orders,
		sender:    sender,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// redirectWith stores a flash for the next page and issues a see-other
// redirect, the JSON-era equivalent of the storefront's message banner.
func (h *Handler) redirectWith(w http.ResponseWriter, r *http.Request, sessionID, location, message string) {
	if err := h.sessions.PushFlash(r.Context(), sessionID, message); err != nil {
		h.logger.Error("failed to store flash message", "error", err)
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

type showCheckoutResponse struct {
	StripePublicKey string      `json:"stripe_public_key"`
	ClientSecret    string      `json:"client_secret"`
	Totals          *bag.Totals `json:"totals"`
}

// HandleShow computes the bag totals and creates a payment intent for the
// grand total, handing the client secret to the browser for confirmation.
func (h *Handler) HandleShow(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(w, r)

	cart, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to read bag", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if cart.IsEmpty() {
		h.redirectWith(w, r, sessionID, "/products", "There's nothing in your bag at the moment")
		return
	}

	totals, err := bag.Compute(r.Context(), cart, h.catalog, h.cfg.FreeDeliveryThreshold, h.cfg.DeliveryPercentage)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to compute bag totals", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	intent, err := h.intents.CreateIntent(r.Context(), totals.StripeAmount(), h.cfg.Currency)
	if err != nil {
		h.logger.Error("failed to create payment intent", "error", err, "amount", totals.StripeAmount())
		h.redirectWith(w, r, sessionID, "/bag", "Sorry, our payment system is unavailable right now.")
		return
	}

	h.logger.Info("payment intent created", "intent_id", intent.ID, "amount", totals.StripeAmount())
	h.writeJSON(w, http.StatusOK, showCheckoutResponse{
		StripePublicKey: h.cfg.StripePublicKey,
		ClientSecret:    intent.ClientSecret,
		Totals:          totals,
	})
}

// extractPaymentID pulls the transaction id out of a client secret token of
// the form "<id>_secret_<rest>", empty when the marker is absent.
func extractPaymentID(clientSecret string) string {
	if !strings.Contains(clientSecret, "_secret") {
		return ""
	}
	id, _, _ := strings.Cut(clientSecret, "_secret")
	return id
}

// HandleSubmit validates the order form, persists the order with its line
// items, clears the bag and sends the confirmation email.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(w, r)

	cart, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to read bag", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if cart.IsEmpty() {
		h.redirectWith(w, r, sessionID, "/products", "There's nothing in your bag at the moment")
		return
	}

	totals, err := bag.Compute(r.Context(), cart, h.catalog, h.cfg.FreeDeliveryThreshold, h.cfg.DeliveryPercentage)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to compute bag totals", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	form := bindOrderForm(r.PostForm)
	if fieldErrors := form.validate(); len(fieldErrors) > 0 {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "There was an error with your form. Please double check your information.",
			"errors":  fieldErrors,
			"values":  form,
		})
		return
	}

	order := &domain.Order{
		FullName:       form.FullName,
		Email:          form.Email,
		PhoneNumber:    form.PhoneNumber,
		Country:        form.Country,
		Postcode:       form.Postcode,
		TownOrCity:     form.TownOrCity,
		StreetAddress1: form.StreetAddress1,
		StreetAddress2: form.StreetAddress2,
		County:         form.County,
		DeliveryCost:   totals.Delivery,
		OrderTotal:     totals.Total,
		GrandTotal:     totals.GrandTotal,
		StripePID:      extractPaymentID(r.PostForm.Get("client_secret")),
	}

	if err := h.orders.Create(r.Context(), order, cart); err != nil {
		h.logger.Error("failed to create order", "error", err)
		h.redirectWith(w, r, sessionID, "/bag", "Sorry, there was a problem processing your order.")
		return
	}

	// The bag is cleared whether or not the email below goes out.
	if err := h.sessions.Clear(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to clear bag", "error", err, "order_number", order.OrderNumber)
	}

	h.sendConfirmationEmail(r.Context(), order)

	if h.publisher != nil {
		event := domain.OrderPlacedEvent{
			OrderNumber:  order.OrderNumber,
			Email:        order.Email,
			GrandTotal:   order.GrandTotal.StringFixed(2),
			ProductCount: totals.ProductCount,
			StripePID:    order.StripePID,
			Timestamp:    order.CreatedAt,
		}
		if err := h.publisher.Publish(r.Context(), order.OrderNumber, event); err != nil {
			h.logger.Error("failed to publish order placed event", "error", err, "order_number", order.OrderNumber)
		}
	}

	h.logger.Info("order created", "order_number", order.OrderNumber, "grand_total", order.GrandTotal.StringFixed(2))
	http.Redirect(w, r, "/checkout/success/"+order.OrderNumber, http.StatusSeeOther)
}

// Email failure never blocks order completion; the order is already placed.
func (h *Handler) sendConfirmationEmail(ctx context.Context, order *domain.Order) {
	body, err := renderConfirmationBody(order, h.cfg.FromEmail)
	if err != nil {
		h.logger.Error("failed to render confirmation email", "error", err, "order_number", order.OrderNumber)
		return
	}

	msg := email.Message{
		To:      order.Email,
		From:    h.cfg.FromEmail,
		Subject: fmt.Sprintf("Order Confirmation - %s", order.OrderNumber),
		Body:    body,
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_number", order.OrderNumber)
		return
	}

	if err := h.orders.MarkEmailSent(ctx, order.ID); err != nil {
		h.logger.Error("failed to mark email sent", "error", err, "order_number", order.OrderNumber)
		return
	}
	order.EmailSent = true
}

type successResponse struct {
	Order    *domain.Order `json:"order"`
	Messages []string      `json:"messages"`
}

func (h *Handler) HandleSuccess(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "missing order number")
		return
	}

	order, err := h.orders.GetByOrderNumber(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to get order", "error", err, "order_number", orderNumber)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sessionID := h.sessionID(w, r)
	messages, err := h.sessions.PopFlashes(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to read flash messages", "error", err)
		messages = nil
	}
	messages = append(messages, fmt.Sprintf("Order successfully processed! Your order number is %s.", orderNumber))

	h.logger.Info("order retrieved", "order_number", orderNumber)
	h.writeJSON(w, http.StatusOK, successResponse{Order: order, Messages: messages})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
