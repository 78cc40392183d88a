package testutil

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ItemFixture carries default master data for a test item
type ItemFixture struct {
	SKU      string
	Name     string
	Unit     string
	MinStock decimal.Decimal
}

// LocationFixture carries default master data for a test location
type LocationFixture struct {
	Name string
	Kind string
}

// FixtureFactory hands out fixtures with unique SKUs and names so tests
// never trip the catalogue unique constraints.
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// Item returns an item fixture with a unique SKU
func (f *FixtureFactory) Item() ItemFixture {
	n := f.next()
	return ItemFixture{
		SKU:      fmt.Sprintf("SKU-%04d", n),
		Name:     fmt.Sprintf("Test Item %d", n),
		Unit:     "pcs",
		MinStock: decimal.Zero,
	}
}

// Location returns a location fixture
func (f *FixtureFactory) Location(kind string) LocationFixture {
	n := f.next()
	if kind == "" {
		kind = "storage"
	}
	return LocationFixture{
		Name: fmt.Sprintf("Test Location %d", n),
		Kind: kind,
	}
}

// DaysFromNow returns a date pointer n days in the future, truncated to a day.
func DaysFromNow(n int) *time.Time {
	d := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, n)
	return &d
}
