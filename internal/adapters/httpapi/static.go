package httpapi

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

const indexFile = "index.html"

// staticFiles serves files from a directory confined with os.Root, so
// names cannot climb out of it.
type staticFiles struct {
	dir string
}

func (s staticFiles) serveIndex(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, indexFile)
}

func (s staticFiles) serveFile(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, chi.URLParam(r, "*"))
}

func (s staticFiles) serve(w http.ResponseWriter, r *http.Request, name string) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || !fs.ValidPath(name) {
		writeError(w, http.StatusBadRequest, "invalid path: "+name)
		return
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found: "+name)
		return
	}
	defer func() { _ = root.Close() }()

	f, err := root.Open(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found: "+name)
		return
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		writeError(w, http.StatusNotFound, "File not found: "+name)
		return
	}
	http.ServeContent(w, r, path.Base(name), st.ModTime(), f)
}
