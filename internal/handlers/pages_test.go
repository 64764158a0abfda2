package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagesPlaceholder(t *testing.T) {
	rec := httptest.NewRecorder()
	Pages("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal/new", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/auth/login?provider=google")
}

func TestPagesServesFrontend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>home</p>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "journal"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "journal", "new.html"), []byte("<p>editor</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	tests := []struct {
		path string
		body string
	}{
		{"/", "<p>home</p>"},
		{"/journal/new", "<p>editor</p>"},
		{"/app.js", "console.log(1)"},
		{"/entries/123", "<p>home</p>"},
	}
	pages := Pages(dir)
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		pages.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Equal(t, tt.body, rec.Body.String(), tt.path)
	}
}
