// Package router maps a parsed request onto a file under a virtual host's
// static-files or error-pages tree and enforces the per-route method
// table. Resolve confines every candidate path to its tree root before it
// is ever stat'd, so a crafted path cannot escape via ".." or a symlink.
package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/internal/token"
)

// Resolution is what the router hands to the responder.
type Resolution struct {
	PhysicalPath string
	IsErrorPage  bool
	ForcedStatus int // meaningful only when IsErrorPage
}

// CollaboratorHandler is the shared (Request, cookie, root, config) ->
// Response signature external handlers are built against: CGI scripts and
// the uploads path. Neither runs inside this core, but the contract
// they'd be wired against is part of the router's surface so a handler
// can be dropped in without reshaping Resolve's callers.
type CollaboratorHandler func(req model.Request, cookie, root string, cfg model.ServerConfig) (*model.Response, error)

// ClassifyCGI reports whether relPath (already stripped of any /uploads/
// prefix, as Resolve's first step does) names a CGI script by extension.
// It is a pure classifier: callers upstream of Resolve use it to decide
// whether to dispatch to a CollaboratorHandler instead of calling Resolve
// at all.
func ClassifyCGI(relPath string) bool {
	switch filepath.Ext(relPath) {
	case ".cgi", ".py", ".pl", ".sh":
		return true
	default:
		return false
	}
}

// Resolve maps req onto a file under root/static/<prefix>/, where prefix
// is cfg's static_files_prefix or error_pages_prefix. root is the single
// process-wide directory every virtual host's trees are nested under; it
// is supplied at startup, never part of a virtual host's own JSON.
// A request path whose final segment (extension stripped) is a bare
// number is treated as a direct reference into the error-pages tree,
// regardless of how it was reached: the page's filename stem, not the
// route that served it, decides its status.
func Resolve(root string, cfg model.ServerConfig, req model.Request) (Resolution, token.ErrorToken) {
	relPath := strings.TrimPrefix(req.Path, "/uploads/")
	relPath = strings.TrimPrefix(relPath, "/")

	if relPath == "" || strings.HasSuffix(req.Path, "/") {
		relPath = filepath.Join(relPath, cfg.DefaultFile)
	}

	isErrorPage := looksLikeErrorPage(relPath)

	prefix := cfg.StaticFilesPrefix
	if isErrorPage {
		prefix = cfg.ErrorPagesPrefix
	}
	treeRoot := filepath.Join(root, "static", prefix)

	physical, tok := Confine(treeRoot, relPath)
	if tok != token.OK {
		return Resolution{}, tok
	}

	info, err := os.Stat(physical)
	if err != nil {
		return Resolution{}, token.NotFound404
	}
	if info.IsDir() {
		// A URI with no trailing slash that still names a directory (e.g.
		// "/docs") gets the same default-file substitution as "/docs/",
		// re-run through the same existence check.
		relPath = filepath.Join(relPath, cfg.DefaultFile)
		physical, tok = Confine(treeRoot, relPath)
		if tok != token.OK {
			return Resolution{}, tok
		}
		info, err = os.Stat(physical)
		if err != nil || info.IsDir() {
			return Resolution{}, token.NotFound404
		}
	}

	if isErrorPage {
		// An error page with no routes entry of its own allows GET only.
		allowed := req.Method == http.MethodGet
		if routeExists(cfg, relPath) {
			allowed = cfg.AllowsMethod(relPath, req.Method)
		}
		if !allowed {
			return Resolution{}, token.MethodNotAllowed405
		}
		return Resolution{
			PhysicalPath: physical,
			IsErrorPage:  true,
			ForcedStatus: statusFromStem(physical),
		}, token.OK
	}

	if !routeExists(cfg, relPath) {
		return Resolution{}, token.NotFound404
	}
	if !cfg.AllowsMethod(relPath, req.Method) {
		return Resolution{}, token.MethodNotAllowed405
	}
	return Resolution{PhysicalPath: physical}, token.OK
}

// Confine joins relPath onto root and guarantees the result cannot resolve
// outside root, whether through ".." segments or a symlink planted inside
// the tree. root is expected to exist; relPath need not. Exported so
// responder can anchor error-page lookups to the same confinement logic
// Resolve uses for its own trees.
func Confine(root, relPath string) (string, token.ErrorToken) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", token.Internal500
	}
	evalRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", token.Internal500
	}

	// Cleaning relPath as if it were absolute neutralizes any leading ".."
	// before it ever meets evalRoot.
	cleaned := filepath.Clean(string(filepath.Separator) + relPath)
	joined := filepath.Join(evalRoot, cleaned)
	if !withinRoot(evalRoot, joined) {
		return "", token.NotFound404
	}

	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		if !withinRoot(evalRoot, resolved) {
			return "", token.NotFound404
		}
		return resolved, token.OK
	}

	return joined, token.OK
}

func withinRoot(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

func looksLikeErrorPage(relPath string) bool {
	base := filepath.Base(relPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return false
	}
	_, err := strconv.Atoi(stem)
	return err == nil
}

func statusFromStem(physical string) int {
	base := filepath.Base(physical)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	n, err := strconv.Atoi(stem)
	if err != nil {
		return 500
	}
	return n
}

func routeExists(cfg model.ServerConfig, path string) bool {
	_, ok := cfg.Routes[path]
	return ok
}
