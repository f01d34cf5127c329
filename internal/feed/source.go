package feed

import (
	"context"
	"os"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

// Source provides the product collection served by the feed.
type Source interface {
	List(ctx context.Context) ([]product.Product, error)
}

// StaticSource serves a fixed collection.
type StaticSource struct {
	products []product.Product
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource serves products in the given order.
func NewStaticSource(products []product.Product) *StaticSource {
	return &StaticSource{products: slices.Clone(products)}
}

// ParseStaticSource decodes a JSON product array.
func ParseStaticSource(data []byte) (*StaticSource, error) {
	products, err := product.DecodeList(data)
	if err != nil {
		return nil, err
	}
	return &StaticSource{products: products}, nil
}

// LoadFile reads a JSON product array from path.
func LoadFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}
	src, err := ParseStaticSource(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return src, nil
}

// List returns the collection.
func (s *StaticSource) List(context.Context) ([]product.Product, error) {
	return s.products, nil
}
