// Package server runs the whole request core: one goroutine per listening
// port accepting connections, and one goroutine per connection driving
// read, parse, session, routing, and response to completion before
// writing back and closing.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawserve/httpcore/internal/config"
	"github.com/rawserve/httpcore/internal/errorpipeline"
	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/internal/requestparser"
	"github.com/rawserve/httpcore/internal/responder"
	"github.com/rawserve/httpcore/internal/router"
	"github.com/rawserve/httpcore/internal/session"
	"github.com/rawserve/httpcore/internal/streamreader"
	"github.com/rawserve/httpcore/internal/token"
	"github.com/rawserve/httpcore/internal/vhost"
	"github.com/rawserve/httpcore/pkg/constants"
)

// Server owns one net.Listener per distinct listen_port across its
// configs, plus the process-wide session tracker.
type Server struct {
	root         string
	configs      []model.ServerConfig
	sessions     *session.Tracker
	log          *logrus.Logger
	connDeadline time.Duration

	mu        sync.Mutex
	listeners []net.Listener
	wg        sync.WaitGroup
	closing   bool
}

// New builds a Server from an already-validated config set. root is the
// single filesystem root every virtual host's static and error-page trees
// are nested under as root/static/<prefix>/; it is shared process-wide
// rather than carried per vhost, so it is a runtime parameter and not a
// config field.
func New(root string, configs []model.ServerConfig, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{
		root:         root,
		configs:      configs,
		sessions:     session.New(constants.DefaultSessionTTL, constants.DefaultSessionSweepTick),
		log:          log,
		connDeadline: constants.DefaultConnDeadline,
	}
}

// ListenAndServe opens one listener per distinct port and serves until ctx
// is canceled, at which point it shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ports := config.Ports(s.configs)
	if len(ports) == 0 {
		return fmt.Errorf("server: no ports to listen on")
	}

	for _, port := range ports {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			s.Shutdown(context.Background())
			return fmt.Errorf("server: listening on port %d: %w", port, err)
		}

		s.mu.Lock()
		s.listeners = append(s.listeners, ln)
		s.mu.Unlock()

		portConfigs := vhost.ForPort(s.configs, port)
		s.log.WithField("port", port).Info("listening")

		s.wg.Add(1)
		go s.acceptLoop(ctx, ln, portConfigs)
	}

	<-ctx.Done()
	return s.Shutdown(context.Background())
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, portConfigs []model.ServerConfig) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}

			s.log.WithError(err).Warn("accept failed")
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn, portConfigs)
		}()
	}
}

// serveConn drives exactly one request to completion and closes the
// connection. The server is not pipelined: one request per accepted
// connection, then teardown.
func (s *Server) serveConn(conn net.Conn, portConfigs []model.ServerConfig) {
	defer conn.Close()

	deadline := time.Now().Add(s.connDeadline)
	log := s.log.WithField("remote", conn.RemoteAddr().String())

	result := streamreader.Read(conn, deadline, portConfigs)
	if result.ClosedEmpty {
		return
	}
	if result.Token != token.OK {
		writeResponse(conn, errorpipeline.Finalize(s.root, result.Token, result.Config, "", log), log)
		return
	}

	req, tok := requestparser.Parse(result.Headers, result.Body)
	if tok != token.OK {
		writeResponse(conn, errorpipeline.Finalize(s.root, tok, result.Config, "", log), log)
		return
	}

	sessionID, tok := s.sessions.ExtractOrMint(req.Header)
	if tok != token.OK {
		writeResponse(conn, errorpipeline.Finalize(s.root, tok, result.Config, "", log), log)
		return
	}

	res, tok := router.Resolve(s.root, result.Config, req)
	if tok != token.OK {
		writeResponse(conn, errorpipeline.Finalize(s.root, tok, result.Config, sessionID, log), log)
		return
	}

	resp, ok := responder.BuildFileResponse(res, sessionID, log)
	if !ok {
		resp = errorpipeline.Finalize(s.root, token.Internal500, result.Config, sessionID, log)
	}
	writeResponse(conn, resp, log)
}

func writeResponse(conn net.Conn, resp *model.Response, log *logrus.Entry) {
	if resp == nil {
		resp = responder.BuildLastResort500()
	}

	resp.Header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	resp.Header.Set("Connection", "close")

	if _, err := fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\n", resp.StatusCode, http.StatusText(resp.StatusCode)); err != nil {
		log.WithError(err).Warn("writing status line failed")
		return
	}
	if err := resp.Header.Write(conn); err != nil {
		log.WithError(err).Warn("writing headers failed")
		return
	}
	if _, err := conn.Write([]byte("\r\n")); err != nil {
		log.WithError(err).Warn("writing header terminator failed")
		return
	}
	if _, err := conn.Write(resp.Body); err != nil {
		log.WithError(err).Warn("writing body failed")
	}
}

// Shutdown closes every listener and waits up to ShutdownDrainTimeout for
// in-flight connections to finish before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	listeners := s.listeners
	s.mu.Unlock()

	for _, ln := range listeners {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(constants.ShutdownDrainTimeout):
		s.log.Warn("shutdown drain timed out, in-flight connections abandoned")
	case <-ctx.Done():
	}

	s.sessions.Close()
	return nil
}
