// Package mime implements the "path -> optional mime string" collaborator
// the responder consults when serving static files. It is a pure function:
// no state, no I/O beyond the standard library's built-in extension table.
package mime

import (
	"mime"
	"path/filepath"
	"strings"
)

// Fallback is used whenever the extension is unknown or absent.
const Fallback = "text/plain"

// Guess returns the content type for path, or (Fallback, false) when the
// extension maps to nothing.
func Guess(path string) (string, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return Fallback, false
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return Fallback, false
	}
	// Strip charset params the stdlib table sometimes attaches (e.g. for
	// .html on some platforms) so a cookie-driven text/html stays stable.
	if idx := strings.IndexByte(typ, ';'); idx != -1 {
		typ = strings.TrimSpace(typ[:idx])
	}
	return typ, true
}
