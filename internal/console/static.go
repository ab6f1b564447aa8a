package console

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const indexFile = "index.html"

var mimeTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".css":   "text/css; charset=utf-8",
	".json":  "application/json",
	".map":   "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
	".txt":   "text/plain; charset=utf-8",
}

var fontExts = map[string]bool{".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true}

func mimeType(path string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}

// static serves files from the dist directory. Paths that escape it are
// refused; anything that is not a regular file falls back to the entry
// document so client-side routes resolve.
func (s *Server) static(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
		return
	}

	full, ok := s.resolve(r.URL.Path)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if full == "" || filepath.Base(full) == indexFile {
		s.index(w, r)
		return
	}
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		s.index(w, r)
		return
	}
	f, err := os.Open(full)
	if err != nil {
		s.index(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", mimeType(full))
	if fontExts[strings.ToLower(filepath.Ext(full))] {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "public, max-age=31536000")
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// resolve maps a URL path into the dist directory. "" means the entry
// document; ok is false when the path escapes the directory.
func (s *Server) resolve(urlPath string) (string, bool) {
	if urlPath == "" || urlPath == "/" {
		return "", true
	}
	full := filepath.Join(s.distDir, filepath.FromSlash(urlPath))
	rel, err := filepath.Rel(s.distDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// index renders the entry document with the current branding.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.shell.Render(&buf); err != nil {
		writeError(w, r, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", mimeTypes[".html"])
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, indexFile, time.Time{}, bytes.NewReader(buf.Bytes()))
}
