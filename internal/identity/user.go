// Package identity wraps the auth endpoints and holds the signed-in user.
// Presence, cursors and locks all key off the same User value, so a given
// person renders with one color everywhere.
package identity

// User is the session identity. Color is fixed at sign-in from the same
// palette hash every presence-adjacent component used to compute on its own.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

var palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8",
	"#F7DC6F", "#BB8FCE", "#85C1E2", "#F8B739", "#52B788",
}

// ColorFor hashes a name into the fixed 10-color palette. The hash is
// computed in int32 so the slot matches `(hash << 5) - hash + code` with
// 32-bit wraparound, keeping colors stable across client versions.
func ColorFor(name string) string {
	var hash int32
	for _, r := range name {
		hash = int32(r) + (hash<<5 - hash)
	}
	v := int64(hash)
	if v < 0 {
		v = -v
	}
	return palette[v%int64(len(palette))]
}
