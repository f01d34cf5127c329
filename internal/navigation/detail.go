package navigation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

// DetailTitle is the base page title of the detail view.
const DetailTitle = "Product Detail"

// State is a detail view state.
type State int

const (
	StateEntering State = iota
	StateLoading
	StateLoaded
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEntering:
		return "entering"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateLoaded || s == StateEmpty || s == StateFailed
}

var transitions = map[State][]State{
	StateEntering: {StateLoading},
	StateLoading:  {StateLoaded, StateEmpty, StateFailed},
}

// DetailView is what the detail view renders. Product is set only in
// StateLoaded and ErrorMessage only in StateFailed.
type DetailView struct {
	PageTitle    string
	State        State
	Product      *product.Product
	ErrorMessage string

	listener func(from, to State)
}

func (v *DetailView) advance(to State) {
	for _, next := range transitions[v.State] {
		if next == to {
			from := v.State
			v.State = to
			if v.listener != nil {
				v.listener(from, to)
			}
			return
		}
	}
	panic(fmt.Sprintf("navigation: invalid detail transition %s -> %s", v.State, to))
}

// DetailController drives the detail view. It relies on the Guard having
// validated the route and on the repository for every product access.
type DetailController struct {
	products product.Repository
	lg       *zap.Logger
	listener func(from, to State)
}

// DetailOption configures a DetailController.
type DetailOption func(*DetailController)

// WithStateListener observes every detail view transition.
func WithStateListener(fn func(from, to State)) DetailOption {
	return func(c *DetailController) { c.listener = fn }
}

// WithDetailLogger sets the controller logger.
func WithDetailLogger(lg *zap.Logger) DetailOption {
	return func(c *DetailController) { c.lg = lg }
}

// NewDetailController creates a DetailController backed by products.
func NewDetailController(products product.Repository, opts ...DetailOption) *DetailController {
	c := &DetailController{products: products, lg: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Enter loads the product named by the raw route parameter.
//
// An empty parameter leaves the view in StateEntering. The parameter is
// parsed again rather than trusting an earlier guard run; an unusable value
// resolves to StateEmpty without touching the repository.
func (c *DetailController) Enter(ctx context.Context, raw string) *DetailView {
	v := &DetailView{PageTitle: DetailTitle, State: StateEntering, listener: c.listener}
	if raw == "" {
		return v
	}
	v.advance(StateLoading)

	id, ok := ParseID(raw)
	if !ok {
		v.advance(StateEmpty)
		return v
	}

	p, found, err := c.products.FetchOne(ctx, id)
	switch {
	case err != nil:
		c.lg.Warn("Product fetch failed", zap.Int64("product_id", id), zap.Error(err))
		v.ErrorMessage = err.Error()
		v.advance(StateFailed)
	case !found:
		v.advance(StateEmpty)
	default:
		v.Product = &p
		v.PageTitle = DetailTitle + ": " + p.Name
		v.advance(StateLoaded)
	}
	return v
}

// GoBack returns to the list view. It works from any view state.
func (c *DetailController) GoBack(nav Navigator) {
	nav.NavigateTo(RouteList, nil)
}
