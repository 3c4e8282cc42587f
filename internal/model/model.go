// Package model defines the data types shared across the request core:
// server configuration, the parsed request, and the response to be written
// back to the client.
package model

import (
	"bytes"
	"net/http"
)

// ServerConfig is one virtual host, immutable once the process starts.
// Multiple configs may share a ListenPort; within a port, ServerName must
// be unique.
type ServerConfig struct {
	ServerName        string              `json:"server_name"`
	ListenPort        uint16              `json:"listen_port"`
	StaticFilesPrefix string              `json:"static_files_prefix"`
	ErrorPagesPrefix  string              `json:"error_pages_prefix"`
	DefaultFile       string              `json:"default_file"`
	Routes            map[string][]string `json:"routes"`
	ClientBodySize    int64               `json:"client_body_size"`
	CustomErrorPages  map[int]bool        `json:"custom_error_pages"`
}

// AllowsMethod reports whether method is declared for path.
func (c ServerConfig) AllowsMethod(path, method string) bool {
	for _, m := range c.Routes[path] {
		if m == method {
			return true
		}
	}
	return false
}

// HasCustomErrorPage reports whether status has a configured HTML page.
func (c ServerConfig) HasCustomErrorPage(status int) bool {
	return c.CustomErrorPages[status]
}

// Request is a fully parsed HTTP/1.1 request.
type Request struct {
	Method   string
	Path     string // URI path, unescaped-as-received
	RawQuery string
	Version  string
	Header   http.Header
	Body     []byte
}

// URI reconstructs the request-target as it appeared on the wire.
func (r Request) URI() string {
	if r.RawQuery == "" {
		return r.Path
	}
	return r.Path + "?" + r.RawQuery
}

// Serialize writes the request back into wire form: request line, headers,
// blank line, body. Header order and whitespace are normalized, so a
// parse/serialize round trip is stable from the second pass on.
func (r Request) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteString(r.Method)
	buf.WriteByte(' ')
	buf.WriteString(r.URI())
	buf.WriteByte(' ')
	buf.WriteString(r.Version)
	buf.WriteString("\r\n")
	r.Header.Write(&buf)
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.Bytes()
}

// Response is the outbound HTTP/1.1 response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse creates an empty response with an initialized header map.
func NewResponse(status int) *Response {
	return &Response{StatusCode: status, Header: make(http.Header)}
}
