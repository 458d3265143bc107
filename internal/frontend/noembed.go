//go:build !embed

// Package frontend serves the bundled viewer page. Build with -tags embed
// to compile the page into the binary; otherwise Handler returns nil and the
// server falls back to the filesystem.
package frontend

import "net/http"

func Handler() http.Handler {
	return nil
}
