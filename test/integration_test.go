//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/bag"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/checkout"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/email"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/payments"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/products"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupCheckout(t *testing.T, sessions *bag.Store, catalog *products.Repository, orders *checkout.OrderRepository) *http.ServeMux {
	t.Helper()

	stripeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_int_1","client_secret":"pi_int_1_secret_abc","amount":8998,"currency":"gbp"}`)
	}))
	t.Cleanup(stripeSrv.Close)

	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", email.NewHandler(discardLogger()).HandleSend)
	emailSrv := httptest.NewServer(emailMux)
	t.Cleanup(emailSrv.Close)

	cfg := checkout.Config{
		StripePublicKey:       "pk_test_123",
		Currency:              "gbp",
		FreeDeliveryThreshold: decimal.RequireFromString("50.00"),
		DeliveryPercentage:    decimal.RequireFromString("10"),
		FromEmail:             "boutiqueado@example.com",
	}

	handler := checkout.NewHandler(
		sessions,
		catalog,
		payments.NewClient("sk_test_123", payments.WithAPIBase(stripeSrv.URL)),
		orders,
		email.NewClient(emailSrv.URL, emailSrv.Client()),
		nil,
		cfg,
		discardLogger(),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /checkout", handler.HandleShow)
	mux.HandleFunc("POST /checkout", handler.HandleSubmit)
	mux.HandleFunc("GET /checkout/success/{orderNumber}", handler.HandleSuccess)

	return mux
}

func orderFormBody() url.Values {
	return url.Values{
		"full_name":       {"Ada Lovelace"},
		"email":           {"ada@example.com"},
		"phone_number":    {"01234 567890"},
		"country":         {"GB"},
		"postcode":        {"SW1A 1AA"},
		"town_or_city":    {"London"},
		"street_address1": {"1 Analytical Row"},
		"street_address2": {""},
		"county":          {"Greater London"},
		"client_secret":   {"pi_int_1_secret_abc"},
	}
}

func TestCheckoutFlow(t *testing.T) {
	ctx := context.Background()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	redisClient, cleanupRedis := SetupRedis(ctx, t)
	defer cleanupRedis()

	sessions := bag.NewStore(redisClient, time.Hour)
	catalog := products.NewRepository(db)
	orders := checkout.NewOrderRepository(db)
	mux := setupCheckout(t, sessions, catalog, orders)

	// Two aprons at 24.99 plus four sized t-shirts at 10.00, over the
	// free delivery threshold.
	cart := domain.Cart{
		"2": domain.FlatEntry(2),
		"4": domain.SizedEntry(map[string]int{"m": 1, "l": 3}),
	}

	sessionID := "integration-session"
	if err := sessions.Save(ctx, sessionID, cart); err != nil {
		t.Fatalf("failed to seed bag: %v", err)
	}

	t.Run("show checkout creates an intent for the grand total", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
		req.AddCookie(&http.Cookie{Name: "boutique_session", Value: sessionID})
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			ClientSecret string `json:"client_secret"`
			Totals       struct {
				GrandTotal   decimal.Decimal `json:"grand_total"`
				Delivery     decimal.Decimal `json:"delivery"`
				ProductCount int             `json:"product_count"`
			} `json:"totals"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if resp.ClientSecret != "pi_int_1_secret_abc" {
			t.Errorf("expected client secret from the intent, got %q", resp.ClientSecret)
		}
		if want := decimal.RequireFromString("89.98"); !resp.Totals.GrandTotal.Equal(want) {
			t.Errorf("expected grand total %s, got %s", want, resp.Totals.GrandTotal)
		}
		if !resp.Totals.Delivery.IsZero() {
			t.Errorf("expected free delivery over the threshold, got %s", resp.Totals.Delivery)
		}
		if resp.Totals.ProductCount != 6 {
			t.Errorf("expected product count 6, got %d", resp.Totals.ProductCount)
		}
	})

	var orderNumber string

	t.Run("submit persists the order with its line items", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(orderFormBody().Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: "boutique_session", Value: sessionID})
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected status 303, got %d: %s", rec.Code, rec.Body.String())
		}

		location := rec.Header().Get("Location")
		if !strings.HasPrefix(location, "/checkout/success/") {
			t.Fatalf("expected redirect to the success page, got %q", location)
		}
		orderNumber = strings.TrimPrefix(location, "/checkout/success/")

		order, err := orders.GetByOrderNumber(ctx, orderNumber)
		if err != nil {
			t.Fatalf("failed to load order: %v", err)
		}

		if want := decimal.RequireFromString("89.98"); !order.GrandTotal.Equal(want) {
			t.Errorf("expected grand total %s, got %s", want, order.GrandTotal)
		}
		if order.StripePID != "pi_int_1" {
			t.Errorf("expected stripe pid pi_int_1, got %q", order.StripePID)
		}
		if len(order.LineItems) != 3 {
			t.Fatalf("expected 3 line items, got %d", len(order.LineItems))
		}

		quantity := 0
		for _, item := range order.LineItems {
			quantity += item.Quantity
		}
		if quantity != 6 {
			t.Errorf("expected 6 units across line items, got %d", quantity)
		}

		if order.OriginalBag.ItemCount() != 6 {
			t.Errorf("expected bag snapshot with 6 items, got %d", order.OriginalBag.ItemCount())
		}
	})

	t.Run("submit clears the bag", func(t *testing.T) {
		stored, err := sessions.Get(ctx, sessionID)
		if err != nil {
			t.Fatalf("failed to read bag: %v", err)
		}
		if !stored.IsEmpty() {
			t.Errorf("expected bag to be empty after checkout, got %d items", stored.ItemCount())
		}
	})

	t.Run("success page returns the order", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/checkout/success/"+orderNumber, nil)
		req.AddCookie(&http.Cookie{Name: "boutique_session", Value: sessionID})
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Order struct {
				OrderNumber string `json:"order_number"`
				Email       string `json:"email"`
			} `json:"order"`
			Messages []string `json:"messages"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if resp.Order.OrderNumber != orderNumber {
			t.Errorf("expected order number %s, got %s", orderNumber, resp.Order.OrderNumber)
		}
		if resp.Order.Email != "ada@example.com" {
			t.Errorf("expected email ada@example.com, got %s", resp.Order.Email)
		}
		if len(resp.Messages) == 0 || !strings.Contains(resp.Messages[len(resp.Messages)-1], orderNumber) {
			t.Errorf("expected a success message naming the order, got %v", resp.Messages)
		}
	})

	t.Run("success page returns 404 for an unknown order", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/checkout/success/DOESNOTEXIST", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestProductCatalog(t *testing.T) {
	ctx := context.Background()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	handler := products.NewHandler(products.NewRepository(db), discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", handler.HandleList)
	mux.HandleFunc("GET /products/{productId}", handler.HandleGet)

	t.Run("lists the seeded catalog", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var items []domain.Product
		if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(items) != 5 {
			t.Errorf("expected 5 products, got %d", len(items))
		}
	})

	t.Run("returns a single product with its decimal price", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/2", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var product domain.Product
		if err := json.NewDecoder(rec.Body).Decode(&product); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if want := decimal.RequireFromString("24.99"); !product.Price.Equal(want) {
			t.Errorf("expected price %s, got %s", want, product.Price)
		}
	})

	t.Run("returns 404 for an unknown product", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/999", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestOrderCreationRollsBackOnBadLineItem(t *testing.T) {
	ctx := context.Background()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	orders := checkout.NewOrderRepository(db)

	cart := domain.Cart{
		"2":   domain.FlatEntry(1),
		"999": domain.FlatEntry(1),
	}

	order := &domain.Order{
		FullName:       "Ada Lovelace",
		Email:          "ada@example.com",
		PhoneNumber:    "01234 567890",
		Country:        "GB",
		TownOrCity:     "London",
		StreetAddress1: "1 Analytical Row",
		DeliveryCost:   decimal.RequireFromString("2.50"),
		OrderTotal:     decimal.RequireFromString("25.00"),
		GrandTotal:     decimal.RequireFromString("27.50"),
		StripePID:      "pi_rollback",
	}

	err = orders.Create(ctx, order, cart)
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product not found error, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&count); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if count != 0 {
		t.Errorf("expected all order rows rolled back, got %d", count)
	}
}

func TestBagStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	redisClient, cleanupRedis := SetupRedis(ctx, t)
	defer cleanupRedis()

	store := bag.NewStore(redisClient, time.Hour)

	t.Run("missing session reads as an empty bag", func(t *testing.T) {
		cart, err := store.Get(ctx, "nobody")
		if err != nil {
			t.Fatalf("failed to read bag: %v", err)
		}
		if !cart.IsEmpty() {
			t.Errorf("expected empty bag, got %d items", cart.ItemCount())
		}
	})

	t.Run("saved bag reads back identically", func(t *testing.T) {
		cart := domain.Cart{
			"1": domain.SizedEntry(map[string]int{"s": 2}),
			"3": domain.FlatEntry(4),
		}
		if err := store.Save(ctx, "shopper", cart); err != nil {
			t.Fatalf("failed to save bag: %v", err)
		}

		got, err := store.Get(ctx, "shopper")
		if err != nil {
			t.Fatalf("failed to read bag: %v", err)
		}
		if got.ItemCount() != 6 {
			t.Errorf("expected 6 items, got %d", got.ItemCount())
		}
		if !got["1"].IsBySize() {
			t.Errorf("expected product 1 to keep its sizes")
		}
	})

	t.Run("flash messages pop in order and clear", func(t *testing.T) {
		if err := store.PushFlash(ctx, "shopper", "first"); err != nil {
			t.Fatalf("failed to push flash: %v", err)
		}
		if err := store.PushFlash(ctx, "shopper", "second"); err != nil {
			t.Fatalf("failed to push flash: %v", err)
		}

		messages, err := store.PopFlashes(ctx, "shopper")
		if err != nil {
			t.Fatalf("failed to pop flashes: %v", err)
		}
		if len(messages) != 2 || messages[0] != "first" || messages[1] != "second" {
			t.Errorf("expected [first second], got %v", messages)
		}

		messages, err = store.PopFlashes(ctx, "shopper")
		if err != nil {
			t.Fatalf("failed to pop flashes again: %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("expected no flashes after popping, got %v", messages)
		}
	})
}
