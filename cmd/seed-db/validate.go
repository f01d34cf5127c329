package main

import (
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

// seedRecord holds the fields of a product that are checked before seeding.
type seedRecord struct {
	ID         int64   `validate:"gt=0"`
	Name       string  `validate:"required"`
	Code       string  `validate:"required"`
	Price      float64 `validate:"gte=0"`
	StarRating float64 `validate:"gte=0,lte=5"`
	ImageURL   string  `validate:"omitempty,uri|startswith=assets/"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// loadProducts decodes data and validates every record. Duplicate ids are
// rejected.
func loadProducts(data []byte) ([]product.Product, error) {
	products, err := product.DecodeList(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse products")
	}

	seen := make(map[int64]int, len(products))
	for i, p := range products {
		if first, ok := seen[p.ID]; ok {
			return nil, errors.Errorf("product #%d: duplicate productId %d (first at #%d)", i, p.ID, first)
		}
		seen[p.ID] = i

		price, _ := p.Price.Float64()
		rec := seedRecord{
			ID:         p.ID,
			Name:       p.Name,
			Code:       p.Code,
			Price:      price,
			StarRating: p.StarRating,
			ImageURL:   p.ImageURL,
		}
		if err := validate.Struct(rec); err != nil {
			return nil, errors.Wrapf(err, "product #%d (%d)", i, p.ID)
		}
	}
	return products, nil
}
