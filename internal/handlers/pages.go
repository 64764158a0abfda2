package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const placeholderPage = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Quill</title></head>
<body>
<h1>Quill</h1>
<p>The journal API is running. Build the frontend and set FRONTEND_DIR to serve it here.</p>
<p><a href="/auth/login?provider=google">Sign in with Google</a> or <a href="/auth/login?provider=github">GitHub</a></p>
</body>
</html>
`

// Pages serves the built frontend from dir. Unknown paths fall back to index.html so client-side
// routes like /journal/new load the app. With dir empty a placeholder page is served.
func Pages(dir string) http.Handler {
	if dir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(placeholderPage))
		})
	}

	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if clean != "/" && !strings.HasSuffix(clean, "/") {
			if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
			// Next-style exports write /journal/new as journal/new.html
			if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean)+".html")); err == nil && !info.IsDir() {
				http.ServeFile(w, r, filepath.Join(dir, filepath.FromSlash(clean)+".html"))
				return
			}
		}
		http.ServeFile(w, r, index)
	})
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// APINotFound answers unknown API paths with JSON instead of the frontend.
func APINotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found", "")
}
