package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Order numbers are 32 uppercase hex characters, unique per order.
func newOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// Create persists the order and one line item per (product, size) entry of
// the cart snapshot, all inside a single transaction. Product ids are
// resolved while the transaction is open; any failure rolls back the order
// row too, so an order never exists without its items.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order, cart domain.Cart) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.OrderNumber = newOrderNumber()
	order.OriginalBag = cart

	snapshot, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode bag snapshot: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_number, full_name, email, phone_number, country, postcode,
			town_or_city, street_address1, street_address2, county,
			delivery_cost, order_total, grand_total, original_bag, stripe_pid
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`, order.OrderNumber, order.FullName, order.Email, order.PhoneNumber,
		order.Country, order.Postcode, order.TownOrCity, order.StreetAddress1,
		order.StreetAddress2, order.County, order.DeliveryCost, order.OrderTotal,
		order.GrandTotal, snapshot, order.StripePID,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemIDs := make([]string, 0, len(cart))
	for itemID := range cart {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)

	for _, itemID := range itemIDs {
		entry := cart[itemID]

		var name string
		var price decimal.Decimal
		err := tx.QueryRowContext(ctx, `
			SELECT name, price FROM products WHERE id = $1
		`, itemID).Scan(&name, &price)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("line item for %q: %w", itemID, domain.ErrProductNotFound)
			}
			return fmt.Errorf("resolve product %q: %w", itemID, err)
		}

		if !entry.IsBySize() {
			item, err := insertLineItem(ctx, tx, order.ID, itemID, name, "", entry.Quantity, price)
			if err != nil {
				return err
			}
			order.LineItems = append(order.LineItems, item)
			continue
		}

		sizes := make([]string, 0, len(entry.BySize))
		for size := range entry.BySize {
			sizes = append(sizes, size)
		}
		sort.Strings(sizes)

		for _, size := range sizes {
			item, err := insertLineItem(ctx, tx, order.ID, itemID, name, size, entry.BySize[size], price)
			if err != nil {
				return err
			}
			order.LineItems = append(order.LineItems, item)
		}
	}

	return tx.Commit()
}

func insertLineItem(ctx context.Context, tx *sql.Tx, orderID int64, productID, productName, size string, quantity int, price decimal.Decimal) (domain.OrderLineItem, error) {
	item := domain.OrderLineItem{
		ProductID:   productID,
		ProductName: productName,
		ProductSize: size,
		Quantity:    quantity,
		LineTotal:   price.Mul(decimal.NewFromInt(int64(quantity))),
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO order_line_items (order_id, product_id, product_size, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, orderID, productID, size, quantity, item.LineTotal).Scan(&item.ID)
	if err != nil {
		return item, fmt.Errorf("insert line item for %q: %w", productID, err)
	}

	return item, nil
}

func (r *OrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order := &domain.Order{}
	var snapshot []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, full_name, email, phone_number, country,
			postcode, town_or_city, street_address1, street_address2, county,
			delivery_cost, order_total, grand_total, original_bag, stripe_pid,
			email_sent, created_at
		FROM orders
		WHERE order_number = $1
	`, orderNumber).Scan(
		&order.ID, &order.OrderNumber, &order.FullName, &order.Email,
		&order.PhoneNumber, &order.Country, &order.Postcode, &order.TownOrCity,
		&order.StreetAddress1, &order.StreetAddress2, &order.County,
		&order.DeliveryCost, &order.OrderTotal, &order.GrandTotal, &snapshot,
		&order.StripePID, &order.EmailSent, &order.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(snapshot, &order.OriginalBag); err != nil {
		return nil, fmt.Errorf("decode bag snapshot: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT li.id, li.product_id, p.name, li.product_size, li.quantity, li.line_total
		FROM order_line_items li
		JOIN products p ON p.id = li.product_id
		WHERE li.order_id = $1
		ORDER BY li.id
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderLineItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.ProductSize, &item.Quantity, &item.LineTotal); err != nil {
			return nil, err
		}
		order.LineItems = append(order.LineItems, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// MarkEmailSent flips the one mutable order column.
func (r *OrderRepository) MarkEmailSent(ctx context.Context, orderID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET email_sent = TRUE WHERE id = $1
	`, orderID)
	return err
}
