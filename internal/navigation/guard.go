package navigation

import "strconv"

// InvalidIDNotice is shown when the detail route is entered with a bad id.
const InvalidIDNotice = "Invalid product ID"

// ParseID parses a detail route segment. Only plain base-10 integers are
// accepted; ok is false for anything else and for values below 1.
func ParseID(raw string) (id int64, ok bool) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// Guard gates entry into the detail route. It holds no state.
type Guard struct{}

// Validate reports whether raw is an acceptable product identifier. When it
// is not, the user is notified and sent back to the list view.
func (Guard) Validate(raw string, nav Navigator) bool {
	if _, ok := ParseID(raw); ok {
		return true
	}
	nav.Notify(InvalidIDNotice)
	nav.NavigateTo(RouteList, nil)
	return false
}
