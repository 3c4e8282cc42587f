package router_test

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/internal/router"
	"github.com/rawserve/httpcore/internal/token"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

// testConfig builds a root/static/<prefix>/ tree for a single vhost under
// the shared process root every virtual host is nested under.
func testConfig(t *testing.T) (root string, cfg model.ServerConfig) {
	t.Helper()
	root = t.TempDir()
	static := filepath.Join(root, "static", "site")
	errPages := filepath.Join(root, "static", "errors")

	writeFile(t, static, "index.html", "home")
	writeFile(t, static, "about.html", "about")
	writeFile(t, errPages, "404.html", "not found")
	writeFile(t, errPages, "500.html", "server error")

	cfg = model.ServerConfig{
		ServerName:        "example.com",
		StaticFilesPrefix: "site",
		ErrorPagesPrefix:  "errors",
		DefaultFile:       "index.html",
		Routes: map[string][]string{
			"index.html": {http.MethodGet},
			"about.html": {http.MethodGet},
		},
		ClientBodySize: 1024,
	}
	return root, cfg
}

func TestResolveDefaultFile(t *testing.T) {
	root, cfg := testConfig(t)
	res, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodGet, Path: "/"})
	require.Equal(t, token.OK, tok)
	assert.False(t, res.IsErrorPage)
	assert.Equal(t, filepath.Join(root, "static", cfg.StaticFilesPrefix, "index.html"), res.PhysicalPath)
}

func TestResolveRoutedFile(t *testing.T) {
	root, cfg := testConfig(t)
	res, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodGet, Path: "/about.html"})
	require.Equal(t, token.OK, tok)
	assert.Equal(t, filepath.Join(root, "static", cfg.StaticFilesPrefix, "about.html"), res.PhysicalPath)
}

func TestResolveUnroutedExistingFileIs404(t *testing.T) {
	root, cfg := testConfig(t)
	writeFile(t, filepath.Join(root, "static", cfg.StaticFilesPrefix), "secret.html", "shh")
	_, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodGet, Path: "/secret.html"})
	assert.Equal(t, token.NotFound404, tok)
}

func TestResolveMissingFileIs404(t *testing.T) {
	root, cfg := testConfig(t)
	cfg.Routes["missing.html"] = []string{http.MethodGet}
	_, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodGet, Path: "/missing.html"})
	assert.Equal(t, token.NotFound404, tok)
}

func TestResolveDirectoryWithoutTrailingSlashUsesDefaultFile(t *testing.T) {
	root, cfg := testConfig(t)
	docs := filepath.Join(root, "static", cfg.StaticFilesPrefix, "docs")
	writeFile(t, docs, "index.html", "docs home")
	cfg.Routes["docs/index.html"] = []string{http.MethodGet}

	res, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodGet, Path: "/docs"})
	require.Equal(t, token.OK, tok)
	assert.Equal(t, filepath.Join(docs, "index.html"), res.PhysicalPath)
}

func TestResolveDisallowedMethodIs405(t *testing.T) {
	root, cfg := testConfig(t)
	_, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodPost, Path: "/about.html"})
	assert.Equal(t, token.MethodNotAllowed405, tok)
}

func TestResolveErrorPageForcesStatusFromStem(t *testing.T) {
	root, cfg := testConfig(t)
	res, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodGet, Path: "/404.html"})
	require.Equal(t, token.OK, tok)
	assert.True(t, res.IsErrorPage)
	assert.Equal(t, 404, res.ForcedStatus)
}

func TestResolveErrorPageRejectsNonGet(t *testing.T) {
	root, cfg := testConfig(t)
	_, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodPost, Path: "/404.html"})
	assert.Equal(t, token.MethodNotAllowed405, tok)
}

func TestResolveRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	static := filepath.Join(root, "static", "site")
	require.NoError(t, os.MkdirAll(static, 0o755))
	writeFile(t, root, "secret.txt", "leak")

	cfg := model.ServerConfig{
		ServerName:        "example.com",
		StaticFilesPrefix: "site",
		ErrorPagesPrefix:  "errors",
		DefaultFile:       "index.html",
		Routes:            map[string][]string{"/../secret.txt": {http.MethodGet}},
		ClientBodySize:    1024,
	}

	_, tok := router.Resolve(root, cfg, model.Request{
		Method: http.MethodGet,
		Path:   "/../secret.txt",
	})
	assert.Equal(t, token.NotFound404, tok)
}

func TestResolveUploadsPrefixStripped(t *testing.T) {
	root, cfg := testConfig(t)
	res, tok := router.Resolve(root, cfg, model.Request{Method: http.MethodGet, Path: "/uploads/about.html"})
	require.Equal(t, token.OK, tok)
	assert.Equal(t, filepath.Join(root, "static", cfg.StaticFilesPrefix, "about.html"), res.PhysicalPath)
}

func TestClassifyCGI(t *testing.T) {
	assert.True(t, router.ClassifyCGI("bin/report.cgi"))
	assert.True(t, router.ClassifyCGI("bin/report.py"))
	assert.False(t, router.ClassifyCGI("about.html"))
	assert.False(t, router.ClassifyCGI("style.css"))
}
