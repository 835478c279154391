package domain

import "time"

// Horizon is the look-ahead window shared by the status classifier, the
// expiring report and the expiration notifier.
const Horizon = 42 * 24 * time.Hour

// StatusKey identifies a status label.
type StatusKey string

const (
	StatusExpired      StatusKey = "expired"
	StatusExpiringSoon StatusKey = "expiring_soon"
	StatusUnderstocked StatusKey = "understocked"
	StatusOverstocked  StatusKey = "overstocked"
	StatusFullyStocked StatusKey = "fully_stocked"
)

// Variant is the presentation style attached to a status.
type Variant string

const (
	VariantDestructive Variant = "destructive"
	VariantOutline     Variant = "outline"
	VariantSecondary   Variant = "secondary"
)

// Status is one label of an item's status set.
type Status struct {
	Key     StatusKey `json:"key"`
	Variant Variant   `json:"variant"`
}

// Variant returns the display variant for the key.
func (k StatusKey) Variant() Variant {
	switch k {
	case StatusExpired, StatusUnderstocked:
		return VariantDestructive
	case StatusExpiringSoon, StatusOverstocked:
		return VariantOutline
	default:
		return VariantSecondary
	}
}

// LabelKey is the i18n key of the human-readable label.
func (k StatusKey) LabelKey() string {
	return "inventory.status." + string(k)
}

// ParseStatusKey validates a status filter value.
func ParseStatusKey(s string) (StatusKey, bool) {
	switch k := StatusKey(s); k {
	case StatusExpired, StatusExpiringSoon, StatusUnderstocked, StatusOverstocked, StatusFullyStocked:
		return k, true
	}
	return "", false
}

func newStatus(k StatusKey) Status {
	return Status{Key: k, Variant: k.Variant()}
}

// ExpiresWithinHorizon reports whether exp is set and strictly before now+Horizon.
func ExpiresWithinHorizon(exp *time.Time, now time.Time) bool {
	return exp != nil && exp.Before(now.Add(Horizon))
}

// HasExpiredBatch reports whether any batch expired strictly before now.
func HasExpiredBatch(batches []Batch, now time.Time) bool {
	for _, b := range batches {
		if b.ExpirationDate != nil && b.ExpirationDate.Before(now) {
			return true
		}
	}
	return false
}

// Classify derives the status labels of an aggregated item at now.
//
// An expired batch short-circuits to exactly [Expired]. Otherwise the set is
// an optional ExpiringSoon followed by exactly one stock label, and
// FullyStocked is only ever reported on its own.
func Classify(item AggregatedItem, now time.Time) []Status {
	if HasExpiredBatch(item.Batches, now) {
		return []Status{newStatus(StatusExpired)}
	}

	statuses := make([]Status, 0, 2)
	if ExpiresWithinHorizon(item.EarliestExpiration, now) {
		statuses = append(statuses, newStatus(StatusExpiringSoon))
	}

	switch {
	case item.TotalQuantity < item.TargetQuantity:
		statuses = append(statuses, newStatus(StatusUnderstocked))
	case item.TotalQuantity > item.TargetQuantity:
		statuses = append(statuses, newStatus(StatusOverstocked))
	default:
		statuses = append(statuses, newStatus(StatusFullyStocked))
	}

	if len(statuses) > 1 {
		kept := statuses[:0]
		for _, s := range statuses {
			if s.Key != StatusFullyStocked {
				kept = append(kept, s)
			}
		}
		statuses = kept
	}

	return statuses
}

// ClassifiedItem is an aggregated item with its status labels.
type ClassifiedItem struct {
	AggregatedItem
	Statuses []Status `json:"statuses"`
}

// HasStatus reports whether the item carries the given label.
func (c ClassifiedItem) HasStatus(key StatusKey) bool {
	for _, s := range c.Statuses {
		if s.Key == key {
			return true
		}
	}
	return false
}

// ClassifyAll aggregates and classifies every item, preserving order.
func ClassifyAll(items []Item, now time.Time) []ClassifiedItem {
	out := make([]ClassifiedItem, 0, len(items))
	for _, item := range items {
		agg := Aggregate(item)
		out = append(out, ClassifiedItem{AggregatedItem: agg, Statuses: Classify(agg, now)})
	}
	return out
}
