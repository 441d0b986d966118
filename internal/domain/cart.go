package domain

import (
	"encoding/json"
	"fmt"
)

// Cart is the session-scoped bag: product id -> entry. It is stored as JSON
// in the session store and snapshotted onto orders at submission time.
type Cart map[string]CartEntry

// CartEntry is either a flat quantity or a per-size quantity map, never both.
type CartEntry struct {
	Quantity int
	BySize   map[string]int
}

func FlatEntry(quantity int) CartEntry {
	return CartEntry{Quantity: quantity}
}

func SizedEntry(bySize map[string]int) CartEntry {
	return CartEntry{BySize: bySize}
}

func (e CartEntry) IsBySize() bool {
	return e.BySize != nil
}

// ItemCount sums the quantities held by the entry.
func (e CartEntry) ItemCount() int {
	if !e.IsBySize() {
		return e.Quantity
	}
	count := 0
	for _, q := range e.BySize {
		count += q
	}
	return count
}

// The wire shape matches the session format produced by the storefront:
// a bare integer for flat entries, {"items_by_size": {...}} for sized ones.
type sizedEntryJSON struct {
	ItemsBySize map[string]int `json:"items_by_size"`
}

func (e CartEntry) MarshalJSON() ([]byte, error) {
	if e.IsBySize() {
		return json.Marshal(sizedEntryJSON{ItemsBySize: e.BySize})
	}
	return json.Marshal(e.Quantity)
}

func (e *CartEntry) UnmarshalJSON(data []byte) error {
	var quantity int
	if err := json.Unmarshal(data, &quantity); err == nil {
		*e = CartEntry{Quantity: quantity}
		return nil
	}

	var sized sizedEntryJSON
	if err := json.Unmarshal(data, &sized); err != nil {
		return fmt.Errorf("cart entry is neither a quantity nor a size map: %w", err)
	}
	if sized.ItemsBySize == nil {
		sized.ItemsBySize = map[string]int{}
	}
	*e = CartEntry{BySize: sized.ItemsBySize}
	return nil
}

func (c Cart) IsEmpty() bool {
	return len(c) == 0
}

// ItemCount sums the quantities across every entry in the cart.
func (c Cart) ItemCount() int {
	count := 0
	for _, entry := range c {
		count += entry.ItemCount()
	}
	return count
}
