package navigation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

// ListTitle is the page title of the list view.
const ListTitle = "Product List"

// ListView is what the list view renders.
type ListView struct {
	PageTitle    string
	Filter       string
	Notice       string
	Products     []product.Product
	ErrorMessage string
}

// ListController drives the catalog list view.
type ListController struct {
	products product.Repository
	lg       *zap.Logger
}

// NewListController creates a ListController backed by products.
func NewListController(products product.Repository, lg *zap.Logger) *ListController {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &ListController{products: products, lg: lg}
}

// Enter loads the catalog, keeping products whose name contains filter
// (case-insensitive). notice is a message left by a redirect into the list.
func (c *ListController) Enter(ctx context.Context, filter, notice string) *ListView {
	v := &ListView{PageTitle: ListTitle, Filter: filter, Notice: notice}

	products, err := c.products.FetchAll(ctx)
	if err != nil {
		c.lg.Warn("Catalog fetch failed", zap.Error(err))
		v.ErrorMessage = err.Error()
		return v
	}
	v.Products = FilterByName(products, filter)
	return v
}

// FilterByName returns products whose name contains filter, ignoring case.
// An empty filter keeps everything.
func FilterByName(products []product.Product, filter string) []product.Product {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return products
	}
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), filter) {
			out = append(out, p)
		}
	}
	return out
}
