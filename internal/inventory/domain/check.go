package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is how dates are rendered in reports, checks and e-mails.
const DateLayout = "2006-01-02"

// NotAvailable is rendered for a batch without expiration date.
const NotAvailable = "N/A"

// InventoryCheck is an immutable record of a completed stock count.
type InventoryCheck struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"-" db:"tenant_id"`
	CheckedAt     time.Time  `json:"checked_at" db:"checked_at"`
	CheckedByID   string     `json:"checked_by_id" db:"checked_by_id"`
	CheckedByName string     `json:"checked_by_name" db:"checked_by_name"`
	Items         CheckItems `json:"items" db:"items"`
}

// CheckItem records one batch whose counted quantity differed from the stored one.
type CheckItem struct {
	ItemID          string `json:"item_id"`
	ItemName        string `json:"item_name"`
	BatchExpiration string `json:"batch_expiration"`
	QuantityBefore  int    `json:"quantity_before"`
	QuantityAfter   int    `json:"quantity_after"`
	IsExpired       bool   `json:"is_expired"`
}

// CheckItems is stored as a JSONB array on the check row.
type CheckItems []CheckItem

// Value implements driver.Valuer.
func (c CheckItems) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *CheckItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = CheckItems{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("check items: unsupported source type %T", src)
	}
}

// CountResult is the outcome of reconciling one item's counted quantities.
type CountResult struct {
	Batches Batches
	Changes []CheckItem
}

// Changed reports whether any batch quantity differs from the stored one.
func (r CountResult) Changed() bool {
	return len(r.Changes) > 0
}

// ApplyCount reconciles the counted quantities of item, given per batch in
// stored order. Every differing batch yields a CheckItem; batches counted as
// zero are dropped. Field errors are keyed "counts.<index>".
func ApplyCount(item Item, counts []int, now time.Time) (CountResult, map[string]string) {
	if len(counts) != len(item.Batches) {
		return CountResult{}, map[string]string{
			"counts": fmt.Sprintf("expected %d counts, got %d", len(item.Batches), len(counts)),
		}
	}

	fieldErrs := map[string]string{}
	for i, c := range counts {
		if c < 0 {
			fieldErrs["counts."+strconv.Itoa(i)] = "must be greater than or equal to 0"
		}
	}
	if len(fieldErrs) > 0 {
		return CountResult{}, fieldErrs
	}

	today := startOfDay(now)
	result := CountResult{Batches: make(Batches, 0, len(item.Batches))}

	for i, b := range item.Batches {
		actual := counts[i]
		if actual != b.Quantity {
			expiration := NotAvailable
			expired := false
			if b.ExpirationDate != nil {
				expiration = b.ExpirationDate.Format(DateLayout)
				expired = b.ExpirationDate.Before(today)
			}
			result.Changes = append(result.Changes, CheckItem{
				ItemID:          item.ID,
				ItemName:        item.Name,
				BatchExpiration: expiration,
				QuantityBefore:  b.Quantity,
				QuantityAfter:   actual,
				IsExpired:       expired,
			})
		}
		b.Quantity = actual
		result.Batches = append(result.Batches, b)
	}

	result.Batches = result.Batches.WithoutEmpty()
	return result, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
