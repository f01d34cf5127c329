package web

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/catalog-browser/internal/domain/product"
	"github.com/xenking/catalog-browser/internal/navigation"
)

// Renderer displays view models.
type Renderer interface {
	RenderList(w http.ResponseWriter, v *navigation.ListView)
	RenderDetail(w http.ResponseWriter, v *navigation.DetailView)
}

var _ Renderer = JSONRenderer{}

// JSONRenderer renders view models as JSON documents.
type JSONRenderer struct{}

// RenderList writes the list view.
func (JSONRenderer) RenderList(w http.ResponseWriter, v *navigation.ListView) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("pageTitle")
	e.Str(v.PageTitle)
	if v.Filter != "" {
		e.FieldStart("filter")
		e.Str(v.Filter)
	}
	if v.Notice != "" {
		e.FieldStart("notice")
		e.Str(v.Notice)
	}
	if v.ErrorMessage != "" {
		e.FieldStart("errorMessage")
		e.Str(v.ErrorMessage)
	} else {
		e.FieldStart("products")
		product.EncodeList(&e, v.Products)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// RenderDetail writes the detail view. A failed load is still a successful
// render: the error message is part of the view.
func (JSONRenderer) RenderDetail(w http.ResponseWriter, v *navigation.DetailView) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("pageTitle")
	e.Str(v.PageTitle)
	e.FieldStart("state")
	e.Str(v.State.String())
	if v.Product != nil {
		e.FieldStart("product")
		v.Product.Encode(&e)
	}
	if v.ErrorMessage != "" {
		e.FieldStart("errorMessage")
		e.Str(v.ErrorMessage)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
