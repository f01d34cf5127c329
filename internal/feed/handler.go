// Package feed serves the product collection consumed by the catalog
// browser.
package feed

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/catalog-browser/internal/domain/product"
	"github.com/xenking/catalog-browser/pkg/httpmiddleware"
)

// ProductsPath is the URL path of the product collection.
const ProductsPath = "/api/products/products.json"

// Handler serves the product collection as a JSON array.
type Handler struct {
	src        Source
	failStatus int
}

// Option configures a Handler.
type Option func(*Handler)

// WithFailStatus makes every collection request fail with status. It exists
// to exercise client error handling against a live feed.
func WithFailStatus(status int) Option {
	return func(h *Handler) { h.failStatus = status }
}

// NewHandler creates a Handler over src.
func NewHandler(src Source, opts ...Option) *Handler {
	h := &Handler{src: src}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Router returns the feed route table.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.Get(ProductsPath, h.ServeHTTP)
	return r
}

// ServeHTTP writes the whole collection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())
	if h.failStatus != 0 {
		lg.Debug("Injected failure", zap.Int("status", h.failStatus))
		httpmiddleware.WriteError(w, h.failStatus, http.StatusText(h.failStatus))
		return
	}

	products, err := h.src.List(r.Context())
	if err != nil {
		lg.Error("List products", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "list products")
		return
	}

	var e jx.Encoder
	product.EncodeList(&e, products)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("Vary", "Accept-Encoding")
	if !acceptsGzip(r) {
		_, _ = w.Write(e.Bytes())
		return
	}

	w.Header().Set("Content-Encoding", "gzip")
	zw := pgzip.NewWriter(w)
	if _, err := zw.Write(e.Bytes()); err != nil {
		lg.Warn("Write compressed body", zap.Error(err))
	}
	if err := zw.Close(); err != nil {
		lg.Warn("Close compressed body", zap.Error(err))
	}
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(coding) != "gzip" {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}
