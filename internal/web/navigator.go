package web

import (
	"net/http"
	"net/url"

	"github.com/xenking/catalog-browser/internal/navigation"
)

// QueryNotice carries a user notice across a redirect.
const QueryNotice = "notice"

var _ navigation.Navigator = (*Navigator)(nil)

// Navigator is the per-request navigation capability. Controllers record the
// target route and notice on it; Redirect turns them into a 303 response.
type Navigator struct {
	target string
	notice string
	moved  bool
}

// NavigateTo records route as the redirect target.
func (n *Navigator) NavigateTo(route navigation.Route, params navigation.Params) {
	n.target = route.Path(params)
	n.moved = true
}

// Notify records message to be shown by the next view.
func (n *Navigator) Notify(message string) {
	n.notice = message
}

// Location returns the redirect URL, or "" when no navigation happened.
func (n *Navigator) Location() string {
	if !n.moved {
		return ""
	}
	if n.notice == "" {
		return n.target
	}
	return n.target + "?" + url.Values{QueryNotice: {n.notice}}.Encode()
}

// Redirect writes a 303 to the recorded target. It reports false and writes
// nothing when no navigation happened.
func (n *Navigator) Redirect(w http.ResponseWriter, r *http.Request) bool {
	loc := n.Location()
	if loc == "" {
		return false
	}
	http.Redirect(w, r, loc, http.StatusSeeOther)
	return true
}
