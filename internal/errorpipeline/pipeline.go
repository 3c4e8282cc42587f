// Package errorpipeline turns the single ErrorToken accumulated across
// read, parse, session, and dispatch into the final outbound response. It
// is the one consumer of the token: every earlier stage records failures
// and moves on, and Finalize decides what the client actually sees.
package errorpipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/internal/responder"
	"github.com/rawserve/httpcore/internal/token"
)

// Finalize maps a non-OK token to the response to write back, consulting
// cfg's configured error pages. cfg may be the zero value when no vhost
// was ever selected (e.g. headers never parsed far enough to read Host),
// in which case a plain-text response with the token's status is used
// and no error page is consulted.
// Finalize recovers from a panic anywhere in its own call chain (a failed
// page read is handled already; this guards the unexpected) and answers
// with the same hardcoded body rather than letting the connection die
// without a response.
func Finalize(root string, tok token.ErrorToken, cfg model.ServerConfig, sessionID string, log *logrus.Entry) (resp *model.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("error pipeline panicked, serving last-resort response")
			resp = responder.BuildLastResort500()
		}
	}()

	if tok.IsOK() {
		return nil
	}

	status := token.Status(tok)
	if cfg.ServerName == "" {
		// No vhost was ever selected (the failure happened before or during
		// Host-header parsing), so there is no error_pages_prefix to
		// consult: still answer with the status the token maps to, never a
		// hardcoded 500.
		return responder.BuildPlainStatusResponse(status, sessionID)
	}

	return responder.BuildErrorResponse(root, cfg, status, sessionID, log)
}
