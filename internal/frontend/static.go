package frontend

import (
	"net/http"
	"os"
	"path"
)

// noListingFS hides directories from http.FileServer unless they hold an
// index.html, so the public tree is never enumerated.
type noListingFS struct {
	root http.FileSystem
}

func (fs noListingFS) Open(name string) (http.File, error) {
	f, err := fs.root.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.IsDir() {
		return f, nil
	}

	index, err := fs.root.Open(path.Join(name, "index.html"))
	if err != nil {
		f.Close()
		return nil, os.ErrNotExist
	}
	index.Close()

	return f, nil
}

// staticHandler serves files from dir without directory listings.
func staticHandler(dir string) http.Handler {
	return http.FileServer(noListingFS{root: http.Dir(dir)})
}
