//go:build !embed

package frontend

import "net/http"

// Handler returns nil when the binary is built without the embed tag; the
// server then serves the dashboard from disk or not at all.
func Handler() http.Handler {
	return nil
}
