package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/pkg/actor"
	"golang.org/x/crypto/bcrypt"
)

// UserFixture represents test user data
type UserFixture struct {
	UID          string
	Email        string
	Password     string
	PasswordHash string
	FullName     string
	Role         string
	Phone        *string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
	now      time.Time
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{now: time.Now().UTC().Truncate(time.Second)}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Actor is the actor stamped into fixture audit fields.
func (f *FixtureFactory) Actor() *actor.Actor {
	return &actor.Actor{ID: "fixture-user", Name: "Fixture User", Email: "fixture@test.medistock.de"}
}

func (f *FixtureFactory) audit() domain.Audit {
	return domain.NewAudit(f.Actor(), f.now)
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	user := UserFixture{
		UID:          uuid.New().String(),
		Email:        fmt.Sprintf("user%d@test.medistock.de", seq),
		Password:     "password123",
		PasswordHash: string(hash),
		FullName:     fmt.Sprintf("Test User %d", seq),
		Role:         "Staff",
	}

	for _, opt := range opts {
		opt(&user)
	}

	return user
}

// WithEmail sets the user's email
func WithEmail(email string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Email = email
	}
}

// WithRole sets the user's role
func WithRole(role string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Role = role
	}
}

// WithPassword sets the user's password and its hash
func WithPassword(password string) func(*UserFixture) {
	return func(u *UserFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		u.Password = password
		u.PasswordHash = string(hash)
	}
}

// Vehicle creates a vehicle fixture
func (f *FixtureFactory) Vehicle(name string) domain.Vehicle {
	if name == "" {
		name = fmt.Sprintf("RTW %d", f.nextSeq())
	}
	return domain.Vehicle{ID: uuid.New().String(), Name: name, Audit: f.audit()}
}

// Case creates a case fixture inside vehicleID
func (f *FixtureFactory) Case(vehicleID, name string) domain.Case {
	if name == "" {
		name = fmt.Sprintf("Case %d", f.nextSeq())
	}
	return domain.Case{ID: uuid.New().String(), VehicleID: vehicleID, Name: name, Audit: f.audit()}
}

// ModuleBag creates a module bag fixture inside caseID
func (f *FixtureFactory) ModuleBag(caseID, name string) domain.ModuleBag {
	if name == "" {
		name = fmt.Sprintf("Module %d", f.nextSeq())
	}
	return domain.ModuleBag{ID: uuid.New().String(), CaseID: caseID, Name: name, Audit: f.audit()}
}

// Item creates an item fixture inside moduleID
func (f *FixtureFactory) Item(moduleID string, opts ...func(*domain.Item)) domain.Item {
	item := domain.Item{
		ID:             uuid.New().String(),
		ModuleID:       moduleID,
		Name:           fmt.Sprintf("Item %d", f.nextSeq()),
		TargetQuantity: 10,
		Batches:        domain.Batches{},
		Audit:          f.audit(),
	}
	for _, opt := range opts {
		opt(&item)
	}
	return item
}

// WithItemName sets the item's name
func WithItemName(name string) func(*domain.Item) {
	return func(i *domain.Item) {
		i.Name = name
	}
}

// WithBarcode sets the item's barcode
func WithBarcode(barcode string) func(*domain.Item) {
	return func(i *domain.Item) {
		i.Barcode = &barcode
	}
}

// WithTarget sets the item's target quantity
func WithTarget(target int) func(*domain.Item) {
	return func(i *domain.Item) {
		i.TargetQuantity = target
	}
}

// WithBatch appends a batch; a nil expiration means the batch never expires.
func WithBatch(quantity int, expiration *time.Time) func(*domain.Item) {
	return func(i *domain.Item) {
		i.Batches = append(i.Batches, domain.Batch{Quantity: quantity, ExpirationDate: expiration})
	}
}
