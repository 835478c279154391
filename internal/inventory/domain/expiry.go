package domain

import (
	"sort"
	"time"
)

// ExpiringBatch is one batch found by the expiration scan.
type ExpiringBatch struct {
	ItemID         string    `json:"item_id"`
	ItemName       string    `json:"item_name"`
	Quantity       int       `json:"quantity"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// ExpiringBatches returns every batch whose expiration lies in
// (now, now+Horizon]. Already-expired batches and batches expiring exactly
// at now are excluded; a batch expiring exactly at the horizon is included.
// The result is ordered by expiration date, then item name.
func ExpiringBatches(items []Item, now time.Time) []ExpiringBatch {
	limit := now.Add(Horizon)

	var out []ExpiringBatch
	for _, item := range items {
		for _, b := range item.Batches {
			if b.ExpirationDate == nil {
				continue
			}
			exp := *b.ExpirationDate
			if !exp.After(now) || exp.After(limit) {
				continue
			}
			out = append(out, ExpiringBatch{
				ItemID:         item.ID,
				ItemName:       item.Name,
				Quantity:       b.Quantity,
				ExpirationDate: exp,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpirationDate.Equal(out[j].ExpirationDate) {
			return out[i].ExpirationDate.Before(out[j].ExpirationDate)
		}
		return out[i].ItemName < out[j].ItemName
	})

	return out
}
