package domain

import "time"

// TotalQuantity sums the batch quantities. An empty list yields 0.
func TotalQuantity(batches []Batch) int {
	total := 0
	for _, b := range batches {
		total += b.Quantity
	}
	return total
}

// EarliestExpiration returns the minimum non-nil expiration date, or nil
// when no batch carries one.
func EarliestExpiration(batches []Batch) *time.Time {
	var earliest *time.Time
	for i := range batches {
		exp := batches[i].ExpirationDate
		if exp == nil {
			continue
		}
		if earliest == nil || exp.Before(*earliest) {
			t := *exp
			earliest = &t
		}
	}
	return earliest
}

// AggregatedItem is an item together with its derived totals. It is never
// persisted; derive it again whenever the batches may have changed.
type AggregatedItem struct {
	Item
	TotalQuantity      int        `json:"total_quantity"`
	EarliestExpiration *time.Time `json:"earliest_expiration,omitempty"`
}

// Aggregate derives total quantity and earliest expiration for item.
func Aggregate(item Item) AggregatedItem {
	return AggregatedItem{
		Item:               item,
		TotalQuantity:      TotalQuantity(item.Batches),
		EarliestExpiration: EarliestExpiration(item.Batches),
	}
}

// RestockNeeded is how many units are missing to reach the target.
func (a AggregatedItem) RestockNeeded() int {
	if missing := a.TargetQuantity - a.TotalQuantity; missing > 0 {
		return missing
	}
	return 0
}

// Understocked reports whether the item holds less than its target.
func (a AggregatedItem) Understocked() bool {
	return a.TotalQuantity < a.TargetQuantity
}
