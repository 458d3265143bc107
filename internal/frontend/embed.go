//go:build embed

package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var viewerFiles embed.FS

// Handler serves the viewer page compiled into the binary.
func Handler() http.Handler {
	sub, err := fs.Sub(viewerFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
