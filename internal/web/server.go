// Package web exposes the catalog browser views over HTTP.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-browser/internal/domain/product"
	"github.com/xenking/catalog-browser/internal/navigation"
	"github.com/xenking/catalog-browser/pkg/httpmiddleware"
)

// Server routes requests to the list and detail controllers.
type Server struct {
	list     *navigation.ListController
	detail   *navigation.DetailController
	guard    navigation.Guard
	renderer Renderer
	lg       *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRenderer replaces the JSON renderer.
func WithRenderer(r Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithLogger sets the logger used outside of request scope.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Server) { s.lg = lg }
}

// NewServer creates a Server reading products from repo.
func NewServer(repo product.Repository, opts ...Option) *Server {
	s := &Server{renderer: JSONRenderer{}, lg: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	s.list = navigation.NewListController(repo, s.lg.Named("list"))
	s.detail = navigation.NewDetailController(repo,
		navigation.WithDetailLogger(s.lg.Named("detail")),
		navigation.WithStateListener(func(from, to navigation.State) {
			s.lg.Debug("Detail transition",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}),
	)
	return s
}

// Router returns the route table. Callers may register more routes, such as
// health probes, on it.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, navigation.RouteList.Path(nil), http.StatusSeeOther)
	})
	r.Get("/products", s.handleList)
	r.With(s.guardID).Get("/products/{id}", s.handleDetail)
	r.Get("/products/{id}/back", s.handleBack)
	return r
}

// guardID runs the identifier guard before the detail view. Requests with an
// unusable id are redirected to the list and never reach the repository.
func (s *Server) guardID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, navigation.ParamID)
		nav := &Navigator{}
		if !s.guard.Validate(raw, nav) {
			zctx.From(r.Context()).Debug("Rejected product id", zap.String("id", raw))
			nav.Redirect(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := s.list.Enter(r.Context(), q.Get("filter"), q.Get(QueryNotice))
	s.renderer.RenderList(w, v)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	v := s.detail.Enter(r.Context(), chi.URLParam(r, navigation.ParamID))
	s.renderer.RenderDetail(w, v)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	nav := &Navigator{}
	s.detail.GoBack(nav)
	nav.Redirect(w, r)
}

// RouteFinder resolves request route patterns against routes.
func RouteFinder(routes chi.Routes) httpmiddleware.RouteFinder {
	return func(r *http.Request) string {
		rctx := chi.NewRouteContext()
		if routes.Match(rctx, r.Method, r.URL.Path) {
			return rctx.RoutePattern()
		}
		return ""
	}
}
