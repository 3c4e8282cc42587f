// Package streamreader reads one HTTP/1.1 request off a connection under
// a wall-clock deadline, in two phases (headers, then body), with
// virtual-host selection wedged between them so the body size cap can be
// vhost-specific. The deadline is checked before every read attempt, not
// after. Body accumulation goes through pkg/buffer's
// memory-limit-then-spill store, so a body near the configured cap does
// not have to live as one ever-growing slice.
package streamreader

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/internal/token"
	"github.com/rawserve/httpcore/internal/vhost"
	"github.com/rawserve/httpcore/pkg/buffer"
	"github.com/rawserve/httpcore/pkg/constants"
)

// Result is everything StreamReader hands to the rest of the pipeline.
type Result struct {
	Headers     []byte
	Body        []byte
	Config      model.ServerConfig
	Token       token.ErrorToken
	ClosedEmpty bool // true: no response should be written, just close
}

// Read drives both phases against conn, using portConfigs (already
// filtered to the accepted socket's port by the caller) for virtual host
// selection.
func Read(conn net.Conn, deadline time.Time, portConfigs []model.ServerConfig) Result {
	r := &reader{conn: conn, br: bufio.NewReader(conn), deadline: deadline}

	headers, tok, closedEmpty := r.readHeaders()
	if closedEmpty {
		return Result{ClosedEmpty: true, Token: token.OK}
	}
	if tok != token.OK {
		return Result{Token: tok}
	}

	cfg := vhost.Select(portConfigs, extractHeaderValue(headers, "Host"))

	body, tok := r.readBody(headers, cfg, deadline)
	if tok != token.OK {
		return Result{Config: cfg, Token: tok}
	}

	return Result{Headers: headers, Body: body, Config: cfg, Token: token.OK}
}

type reader struct {
	conn     net.Conn
	br       *bufio.Reader
	deadline time.Time
}

// checkDeadline enforces "checked before each read attempt, not after".
func (r *reader) checkDeadline(d time.Time) token.ErrorToken {
	if !time.Now().Before(d) {
		return token.HeadersReadTimeout
	}
	return token.OK
}

// readHeaders reads one byte at a time into headers until the blank-line
// terminator appears. A deadline trip with zero bytes collected so far is
// the documented silent-close case, not a timeout response: the client
// opened a connection and never sent anything, so there is no request to
// answer.
func (r *reader) readHeaders() (buf []byte, tok token.ErrorToken, closedEmpty bool) {
	headers := make([]byte, 0, 512)

	for {
		if !time.Now().Before(r.deadline) {
			if len(headers) == 0 {
				return nil, token.OK, true
			}
			return nil, token.HeadersReadTimeout, false
		}

		if err := r.conn.SetReadDeadline(r.deadline); err != nil {
			return nil, token.HeadersReadingStream, false
		}

		b, err := r.br.ReadByte()
		if err != nil {
			if isTimeout(err) {
				if len(headers) == 0 {
					return nil, token.OK, true
				}
				return nil, token.HeadersReadTimeout, false
			}
			if err == io.EOF {
				if len(headers) == 0 {
					return nil, token.OK, true
				}
				// Partial headers then EOF: fall through to the
				// terminator check below, which will fail this request.
				break
			}
			return nil, token.HeadersReadingStream, false
		}

		headers = append(headers, b)
		if len(headers) > constants.MaxHeaderBytes {
			return nil, token.HeadersReadingStream, false
		}
		if bytes.HasSuffix(headers, []byte("\r\n\r\n")) {
			return headers, token.OK, false
		}
	}

	if !bytes.HasSuffix(headers, []byte("\r\n\r\n")) {
		return nil, token.HeadersReadingStream, false
	}
	return headers, token.OK, false
}

func (r *reader) readBody(headers []byte, cfg model.ServerConfig, deadline time.Time) ([]byte, token.ErrorToken) {
	buf := buffer.New(constants.DefaultBodyMemLimit)
	defer buf.Close()

	var tok token.ErrorToken
	switch {
	case isChunked(headers):
		tok = r.readChunkedBody(buf, cfg, deadline)
	default:
		if cl, ok := contentLength(headers); ok {
			tok = r.readFixedBody(buf, cl, cfg, deadline)
		} else {
			tok = r.readDirtyBody(buf, cfg, deadline)
		}
	}
	if tok != token.OK {
		return nil, tok
	}

	return drainBuffer(buf)
}

// drainBuffer materializes whatever readBody wrote, whether it stayed in
// memory or spilled to disk under load.
func drainBuffer(buf *buffer.Buffer) ([]byte, token.ErrorToken) {
	if !buf.IsSpilled() {
		return buf.Bytes(), token.OK
	}

	rc, err := buf.Reader()
	if err != nil {
		return nil, token.BodyReadingStream
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, token.BodyReadingStream
	}
	return data, token.OK
}

// readFixedBody reads exactly n bytes into buf, rejecting the request
// early if n already exceeds the vhost's client_body_size.
func (r *reader) readFixedBody(buf *buffer.Buffer, n int64, cfg model.ServerConfig, deadline time.Time) token.ErrorToken {
	if n < 0 || n > constants.MaxContentLength {
		return token.BodyReadingStream
	}
	if n > cfg.ClientBodySize {
		return token.BodySizeLimit413
	}
	if n == 0 {
		return token.OK
	}

	rbuf := make([]byte, 4096)

	for buf.Size() < n {
		if tok := r.checkDeadline(deadline); tok != token.OK {
			return token.BodyReadTimeout
		}
		if err := r.conn.SetReadDeadline(deadline); err != nil {
			return token.BodyReadingStream
		}

		want := n - buf.Size()
		if want > int64(len(rbuf)) {
			want = int64(len(rbuf))
		}

		read, err := r.br.Read(rbuf[:want])
		if read > 0 {
			if _, werr := buf.Write(rbuf[:read]); werr != nil {
				return token.BodyReadingStream
			}
			if buf.Size() > n {
				return token.BodyBufferExceedsContentLength
			}
		}
		if err != nil {
			if isTimeout(err) {
				return token.BodyReadTimeout
			}
			if err == io.EOF {
				if buf.Size() < n {
					return token.BodyReadingStream
				}
				break
			}
			return token.BodyReadingStream
		}
	}

	return token.OK
}

// readDirtyBody handles the no-Content-Length, non-chunked case: a short
// deadline applies, and zero bytes by then means an empty body rather than
// a timeout.
func (r *reader) readDirtyBody(buf *buffer.Buffer, cfg model.ServerConfig, deadline time.Time) token.ErrorToken {
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	dirtyDeadline := time.Now().Add(remaining / constants.DirtyBodyDivisor)

	rbuf := make([]byte, 4096)

	for {
		if !time.Now().Before(dirtyDeadline) {
			if buf.Size() == 0 {
				return token.OK
			}
			return token.DirtyBodyReadTimeout
		}
		if err := r.conn.SetReadDeadline(dirtyDeadline); err != nil {
			return token.BodyReadingStream
		}

		read, err := r.br.Read(rbuf)
		if read > 0 {
			if _, werr := buf.Write(rbuf[:read]); werr != nil {
				return token.BodyReadingStream
			}
			if buf.Size() > cfg.ClientBodySize {
				return token.BodySizeLimit413
			}
		}
		if err != nil {
			if isTimeout(err) {
				if buf.Size() == 0 {
					return token.OK
				}
				return token.DirtyBodyReadTimeout
			}
			if err == io.EOF {
				return token.OK
			}
			return token.BodyReadingStream
		}
	}
}

func (r *reader) readChunkedBody(buf *buffer.Buffer, cfg model.ServerConfig, deadline time.Time) token.ErrorToken {
	for {
		size, tok := r.readChunkSizeLine(deadline)
		if tok != token.OK {
			return tok
		}
		if size == 0 {
			// No trailer support: the terminating CRLF after the zero-size
			// line is drained and discarded, matching this server's
			// no-keep-alive model where nothing reads the connection again.
			if _, tok := r.readExact(2, deadline); tok != token.OK {
				return tok
			}
			break
		}

		chunk, tok := r.readExact(int(size), deadline)
		if tok != token.OK {
			return tok
		}

		crlf, tok := r.readExact(2, deadline)
		if tok != token.OK {
			return tok
		}
		if crlf[0] != '\r' || crlf[1] != '\n' {
			return token.BodyChunkBiggerThanSize
		}

		if _, err := buf.Write(chunk); err != nil {
			return token.BodyReadingStream
		}
		if buf.Size() > cfg.ClientBodySize {
			return token.BodySizeLimit413
		}
	}

	if buf.Size() == 0 {
		return token.BodyChunkedButZeroSum
	}
	return token.OK
}

// readChunkSizeLine reads one <hex-size>[;ext] CRLF line.
func (r *reader) readChunkSizeLine(deadline time.Time) (int64, token.ErrorToken) {
	line := make([]byte, 0, 16)
	for {
		if tok := r.checkDeadline(deadline); tok != token.OK {
			return 0, token.BodyReadTimeout
		}
		if err := r.conn.SetReadDeadline(deadline); err != nil {
			return 0, token.BodyReadingStream
		}

		b, err := r.br.ReadByte()
		if err != nil {
			if isTimeout(err) {
				return 0, token.BodyReadTimeout
			}
			return 0, token.BodyReadingStream
		}
		line = append(line, b)
		if bytes.HasSuffix(line, []byte("\r\n")) {
			break
		}
		if len(line) > 64 {
			return 0, token.BodyChunkSizeParse
		}
	}

	sizeStr := strings.TrimSpace(string(line))
	if idx := strings.IndexByte(sizeStr, ';'); idx != -1 {
		sizeStr = sizeStr[:idx]
	}
	size, err := strconv.ParseInt(sizeStr, 16, 64)
	if err != nil || size < 0 {
		return 0, token.BodyChunkSizeParse
	}
	return size, token.OK
}

func (r *reader) readExact(n int, deadline time.Time) ([]byte, token.ErrorToken) {
	if n == 0 {
		return nil, token.OK
	}
	buf := make([]byte, n)
	read := 0
	for read < n {
		if tok := r.checkDeadline(deadline); tok != token.OK {
			return nil, token.BodyReadTimeout
		}
		if err := r.conn.SetReadDeadline(deadline); err != nil {
			return nil, token.BodyReadingStream
		}
		nn, err := r.br.Read(buf[read:])
		read += nn
		if err != nil {
			if isTimeout(err) {
				return nil, token.BodyReadTimeout
			}
			return nil, token.BodyReadingStream
		}
	}
	return buf, token.OK
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// extractHeaderValue performs a lightweight, pre-parse scan of the raw
// headers buffer for name's first value, used only to pick a vhost before
// the full RequestParser runs.
func extractHeaderValue(headers []byte, name string) string {
	for _, line := range strings.Split(string(headers), "\n") {
		line = strings.TrimSuffix(line, "\r")
		k, v, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func isChunked(headers []byte) bool {
	v := extractHeaderValue(headers, "Transfer-Encoding")
	return strings.Contains(strings.ToLower(v), "chunked")
}

func contentLength(headers []byte) (int64, bool) {
	v := extractHeaderValue(headers, "Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
