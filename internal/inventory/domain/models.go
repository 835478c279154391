// Package domain holds the inventory model and the pure functions derived
// from it: batch aggregation, status classification, report grouping and the
// expiring-batch scan. Nothing here touches storage or the clock; callers
// pass the reference time explicitly.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medistock/medistock-backend/pkg/actor"
)

// Audit carries who created and last updated a document, and when.
type Audit struct {
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	CreatedByID   string    `json:"created_by_id" db:"created_by_id"`
	CreatedByName string    `json:"created_by_name" db:"created_by_name"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
	UpdatedByID   string    `json:"updated_by_id" db:"updated_by_id"`
	UpdatedByName string    `json:"updated_by_name" db:"updated_by_name"`
}

// NewAudit returns audit fields for a document created by a at now.
func NewAudit(a *actor.Actor, now time.Time) Audit {
	if a == nil {
		a = actor.SystemActor()
	}
	return Audit{
		CreatedAt:     now,
		CreatedByID:   a.ID,
		CreatedByName: a.DisplayName(),
		UpdatedAt:     now,
		UpdatedByID:   a.ID,
		UpdatedByName: a.DisplayName(),
	}
}

// Touch records an update by a at now.
func (au *Audit) Touch(a *actor.Actor, now time.Time) {
	if a == nil {
		a = actor.SystemActor()
	}
	au.UpdatedAt = now
	au.UpdatedByID = a.ID
	au.UpdatedByName = a.DisplayName()
}

// Batch is a discrete quantity of an item with its own dates.
type Batch struct {
	Quantity       int        `json:"quantity"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	DeliveryDate   *time.Time `json:"delivery_date,omitempty"`
}

// Batches is stored as a JSONB array on the item row.
type Batches []Batch

// Value implements driver.Valuer.
func (b Batches) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner.
func (b *Batches) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*b = Batches{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("batches: unsupported source type %T", src)
	}
	return json.Unmarshal(data, b)
}

// WithoutEmpty returns the batches that still hold stock.
func (b Batches) WithoutEmpty() Batches {
	out := make(Batches, 0, len(b))
	for _, batch := range b {
		if batch.Quantity > 0 {
			out = append(out, batch)
		}
	}
	return out
}

// Item is a stocked article inside a module bag.
type Item struct {
	ID             string  `json:"id" db:"id"`
	TenantID       string  `json:"-" db:"tenant_id"`
	ModuleID       string  `json:"module_id" db:"module_id"`
	Name           string  `json:"name" db:"name"`
	Barcode        *string `json:"barcode,omitempty" db:"barcode"`
	TargetQuantity int     `json:"target_quantity" db:"target_quantity"`
	Batches        Batches `json:"batches" db:"batches"`
	Notes          *string `json:"notes,omitempty" db:"notes"`
	Audit
}

// Vehicle is the top-level container.
type Vehicle struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"-" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
	Audit
}

// Case belongs to a vehicle and holds module bags.
type Case struct {
	ID        string `json:"id" db:"id"`
	TenantID  string `json:"-" db:"tenant_id"`
	VehicleID string `json:"vehicle_id" db:"vehicle_id"`
	Name      string `json:"name" db:"name"`
	Audit
}

// ModuleBag belongs to a case and holds items.
type ModuleBag struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"-" db:"tenant_id"`
	CaseID   string `json:"case_id" db:"case_id"`
	Name     string `json:"name" db:"name"`
	Audit
}

// EmailSettings holds the notifier template for a tenant.
type EmailSettings struct {
	Template  string    `json:"template"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DeleteSummary reports what a cascading delete removed.
type DeleteSummary struct {
	Vehicles int `json:"vehicles"`
	Cases    int `json:"cases"`
	Modules  int `json:"modules"`
	Items    int `json:"items"`
}
