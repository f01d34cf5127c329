// Package navigation holds the route-entry guard and the view controllers of
// the catalog browser. It knows nothing about HTTP: navigation and user
// notices go through the Navigator capability.
package navigation

import (
	"net/url"
	"strconv"
)

// Route names a logical view.
type Route string

const (
	// RouteList is the catalog list view. It has no parameters.
	RouteList Route = "list"
	// RouteDetail is the product detail view, keyed by ParamID.
	RouteDetail Route = "detail"
)

// ParamID is the detail route parameter carrying the product identifier.
const ParamID = "id"

// Params are route parameters.
type Params map[string]string

// Path renders the route as a URL path.
func (r Route) Path(params Params) string {
	switch r {
	case RouteDetail:
		return "/products/" + url.PathEscape(params[ParamID])
	default:
		return "/products"
	}
}

// DetailParams builds the parameters for RouteDetail.
func DetailParams(id int64) Params {
	return Params{ParamID: strconv.FormatInt(id, 10)}
}

// Navigator is the navigation capability offered by the hosting surface.
type Navigator interface {
	// NavigateTo leaves the current view for route.
	NavigateTo(route Route, params Params)
	// Notify surfaces a message to the user before navigation happens.
	Notify(message string)
}
