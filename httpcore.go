// Package httpcore provides a from-scratch HTTP/1.1 server core: a
// connection reader, request parser, router, and responder wired together
// behind a small top-level API, in place of relying on net/http's own
// request handling.
package httpcore

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rawserve/httpcore/internal/config"
	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/internal/router"
	"github.com/rawserve/httpcore/internal/server"
)

// Version is the current version of the library.
const Version = "1.0.0"

// GetVersion returns the current version of the library.
func GetVersion() string {
	return Version
}

// Re-export key types for easier usage.
type (
	// ServerConfig is one virtual host definition.
	ServerConfig = model.ServerConfig

	// Request is a fully parsed HTTP/1.1 request, as handed to internal
	// routing; exported for callers that want to inspect what was read.
	Request = model.Request

	// Response is the outbound HTTP/1.1 response.
	Response = model.Response

	// CollaboratorHandler is the signature external CGI and uploads
	// handlers are built against; neither is wired into this core, but
	// the contract is exported so a caller can implement and dispatch to
	// one upstream of NewServer.
	CollaboratorHandler = router.CollaboratorHandler
)

// LoadConfig reads and validates a JSON array of ServerConfig from path.
func LoadConfig(path string) ([]ServerConfig, error) {
	return config.Load(path)
}

// Server serves HTTP/1.1 requests across one or more virtual hosts.
type Server struct {
	core *server.Server
}

// NewServer builds a Server from an already-validated config set. root is
// the shared filesystem root every virtual host's static and error-page
// trees are nested under, as root/static/<prefix>/; it is supplied once
// per process, independent of the per-vhost JSON. Pass nil for log to get
// a default logrus.Logger.
func NewServer(root string, configs []ServerConfig, log *logrus.Logger) (*Server, error) {
	if err := config.Validate(configs); err != nil {
		return nil, err
	}
	return &Server{core: server.New(root, configs, log)}, nil
}

// ListenAndServe opens one listener per distinct listen_port and serves
// until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	return s.core.ListenAndServe(ctx)
}

// Shutdown closes all listeners and waits for in-flight connections to
// finish, bounded by the server's drain timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.core.Shutdown(ctx)
}
