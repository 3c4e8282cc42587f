// Package responder turns a router.Resolution or an error status into the
// outbound model.Response: file bytes plus content type on success,
// configured HTML pages with a plain-text fallback on error, and a
// hardcoded 500 that never touches the filesystem as the terminal case.
package responder

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/rawserve/httpcore/internal/mime"
	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/internal/router"
	"github.com/rawserve/httpcore/internal/session"
	"github.com/rawserve/httpcore/internal/token"
)

const hardcoded500Body = "500 Internal Server Error\n"

// BuildFileResponse reads res.PhysicalPath and wraps it into a Response
// carrying the guessed content type and the session cookie. It returns
// false if the file could not be read after the router already confirmed
// it exists (e.g. removed between stat and read), leaving the caller to
// answer with an Internal500 error response instead.
func BuildFileResponse(res router.Resolution, sessionID string, log *logrus.Entry) (*model.Response, bool) {
	data, err := os.ReadFile(res.PhysicalPath)
	if err != nil {
		log.WithError(err).WithField("path", res.PhysicalPath).Warn("reading resolved file failed")
		return nil, false
	}

	status := http.StatusOK
	if res.IsErrorPage {
		status = res.ForcedStatus
	}

	resp := model.NewResponse(status)
	contentType, _ := mime.Guess(res.PhysicalPath)
	resp.Header.Set("Content-Type", contentType)
	resp.Body = data
	setSessionCookie(resp, sessionID)
	return resp, true
}

// BuildErrorResponse serves cfg's configured page for status, confined to
// root/static/<error_pages_prefix>/ the same way router.Resolve confines
// ordinary requests, if one exists and is readable; otherwise it degrades
// to a short plain-text body. It never returns an error itself; any
// failure to read or confine the custom page just falls through to the
// plain-text branch.
func BuildErrorResponse(root string, cfg model.ServerConfig, status int, sessionID string, log *logrus.Entry) *model.Response {
	if cfg.HasCustomErrorPage(status) {
		treeRoot := filepath.Join(root, "static", cfg.ErrorPagesPrefix)
		path, tok := router.Confine(treeRoot, fmt.Sprintf("%d.html", status))
		if tok == token.OK {
			if data, err := os.ReadFile(path); err == nil {
				resp := model.NewResponse(status)
				resp.Header.Set("Content-Type", "text/html")
				resp.Body = data
				setSessionCookie(resp, sessionID)
				return resp
			}
		}
		log.WithField("status", status).Debug("custom error page missing or unreadable, falling back to plain text")
	}

	return BuildPlainStatusResponse(status, sessionID)
}

// BuildPlainStatusResponse builds a plain-text response carrying status,
// with no filesystem access: the fallback for a status whose cfg (or cfg's
// custom error page) isn't available to consult, such as a header-phase
// failure reaching the pipeline before any vhost was ever selected.
func BuildPlainStatusResponse(status int, sessionID string) *model.Response {
	resp := model.NewResponse(status)
	resp.Header.Set("Content-Type", mime.Fallback)
	resp.Body = []byte(http.StatusText(status) + "\n")
	setSessionCookie(resp, sessionID)
	return resp
}

// BuildLastResort500 never touches the filesystem or the session table: it
// is the one response the pipeline can still produce once everything else,
// including reading a configured error page, has failed.
func BuildLastResort500() *model.Response {
	resp := model.NewResponse(http.StatusInternalServerError)
	resp.Header.Set("Content-Type", mime.Fallback)
	resp.Body = []byte(hardcoded500Body)
	return resp
}

func setSessionCookie(resp *model.Response, sessionID string) {
	if sessionID == "" {
		return
	}
	resp.Header.Set("Set-Cookie", fmt.Sprintf("%s=%s; Path=/; HttpOnly", session.CookieName, sessionID))
}
