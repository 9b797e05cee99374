package http

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// staticHandler serves dir read-only. Dot-files and configuration files
// are answered with 404 and left out of directory listings: with the
// default static_dir the served directory is also where config.yaml and
// .env are loaded from.
func staticHandler(dir string) http.Handler {
	files := http.FileServer(publicFS{http.Dir(dir)})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed("GET, HEAD")(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// concealed reports whether name, a slash-separated path, must not be
// served.
func concealed(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".env":
		return true
	}
	return false
}

type publicFS struct {
	http.FileSystem
}

func (fsys publicFS) Open(name string) (http.File, error) {
	if concealed(name) {
		return nil, fs.ErrNotExist
	}
	f, err := fsys.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	return publicFile{f}, nil
}

type publicFile struct {
	http.File
}

func (f publicFile) Readdir(n int) ([]fs.FileInfo, error) {
	entries, err := f.File.Readdir(n)
	shown := entries[:0]
	for _, e := range entries {
		if !concealed(e.Name()) {
			shown = append(shown, e)
		}
	}
	return shown, err
}
