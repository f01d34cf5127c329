package product

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Product represents a catalog item as served by the product feed.
//
// Only ID carries meaning for lookups; the display attributes are passed
// through unmodified. Attributes the feed sends that have no dedicated field
// are kept verbatim in Extra.
type Product struct {
	ID          int64
	Name        string
	Code        string
	ReleaseDate string
	Description string
	Price       decimal.Decimal
	StarRating  float64
	ImageURL    string
	Extra       map[string]jx.Raw
}

// Clone returns a copy of p that shares no memory with it.
func (p Product) Clone() Product {
	if p.Extra != nil {
		extra := make(map[string]jx.Raw, len(p.Extra))
		for k, v := range p.Extra {
			extra[k] = slices.Clone(v)
		}
		p.Extra = extra
	}
	return p
}

// Clone returns a copy of products in which every product is cloned.
func Clone(products []Product) []Product {
	if products == nil {
		return nil
	}
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}

// Snapshot is the result of one successful catalog fetch.
type Snapshot struct {
	Products  []Product
	FetchedAt time.Time
	// Cached is true when the snapshot was served from a snapshot cache
	// instead of the remote feed.
	Cached bool
}

// Find returns the first product in sequence order whose ID equals id.
func (s Snapshot) Find(id int64) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// IDs returns product identifiers in sequence order.
func (s Snapshot) IDs() []int64 {
	ids := make([]int64, len(s.Products))
	for i, p := range s.Products {
		ids[i] = p.ID
	}
	return ids
}

// Repository defines read operations for the product catalog.
//
// Implementations return *AccessError for every failure; a missing product
// is reported through the boolean result of FetchOne, never as an error.
type Repository interface {
	FetchAll(ctx context.Context) ([]Product, error)
	FetchOne(ctx context.Context, id int64) (Product, bool, error)
}
