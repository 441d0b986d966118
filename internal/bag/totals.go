package bag

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
)

// ProductCatalog resolves product ids to catalog entries. Unknown ids fail
// with domain.ErrProductNotFound.
type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Line struct {
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	Product   *domain.Product `json:"product"`
	Size      string          `json:"size,omitempty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Totals struct {
	Lines             []Line          `json:"lines"`
	Total             decimal.Decimal `json:"total"`
	ProductCount      int             `json:"product_count"`
	Delivery          decimal.Decimal `json:"delivery"`
	FreeDeliveryDelta decimal.Decimal `json:"free_delivery_delta"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
}

// StripeAmount is the grand total in minor currency units, rounded to the
// nearest whole unit, as the payment processor expects it.
func (t *Totals) StripeAmount() int64 {
	return t.GrandTotal.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Compute reduces the cart into line totals, delivery charge and grand
// total. Entries are walked in sorted item-id order (sizes sorted too) so
// the emitted line sequence is deterministic. All arithmetic is decimal;
// the threshold and percentage must already be decimal-normalized by the
// caller.
func Compute(ctx context.Context, cart domain.Cart, catalog ProductCatalog, freeDeliveryThreshold, deliveryPercentage decimal.Decimal) (*Totals, error) {
	totals := &Totals{
		Total:             decimal.Zero,
		Delivery:          decimal.Zero,
		FreeDeliveryDelta: decimal.Zero,
	}

	itemIDs := make([]string, 0, len(cart))
	for itemID := range cart {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)

	for _, itemID := range itemIDs {
		entry := cart[itemID]

		product, err := catalog.GetByID(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("resolve product %q: %w", itemID, err)
		}

		if !entry.IsBySize() {
			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(entry.Quantity)))
			totals.Total = totals.Total.Add(lineTotal)
			totals.ProductCount += entry.Quantity
			totals.Lines = append(totals.Lines, Line{
				ItemID:    itemID,
				Quantity:  entry.Quantity,
				Product:   product,
				LineTotal: lineTotal,
			})
			continue
		}

		sizes := make([]string, 0, len(entry.BySize))
		for size := range entry.BySize {
			sizes = append(sizes, size)
		}
		sort.Strings(sizes)

		for _, size := range sizes {
			quantity := entry.BySize[size]
			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(quantity)))
			totals.Total = totals.Total.Add(lineTotal)
			totals.ProductCount += quantity
			totals.Lines = append(totals.Lines, Line{
				ItemID:    itemID,
				Quantity:  quantity,
				Product:   product,
				Size:      size,
				LineTotal: lineTotal,
			})
		}
	}

	if totals.Total.LessThan(freeDeliveryThreshold) {
		totals.Delivery = totals.Total.Mul(deliveryPercentage).Div(decimal.NewFromInt(100))
		totals.FreeDeliveryDelta = freeDeliveryThreshold.Sub(totals.Total)
	}

	totals.GrandTotal = totals.Total.Add(totals.Delivery)

	return totals, nil
}
