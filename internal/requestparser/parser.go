// Package requestparser turns the raw header and body bytes collected by
// the stream reader into a structured model.Request: line-splitting,
// request-line validation, ": "-delimited header parsing, with
// golang.org/x/net's httpguts providing the RFC 7230 token and value
// checks.
package requestparser

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/internal/token"
)

const wantVersion = "HTTP/1.1"

// Parse builds a Request from the header and body buffers StreamReader
// collected. headers must not be empty (the caller is responsible for the
// empty-buffer-means-silent-close case before calling Parse).
func Parse(headers, body []byte) (model.Request, token.ErrorToken) {
	if len(headers) == 0 {
		return model.Request{}, token.HeadersBufferEmpty
	}

	text, ok := toUTF8(headers)
	if !ok {
		return model.Request{}, token.HeadersBufferToString
	}

	lines := strings.Split(text, "\n")

	method, rawURI, version, tok := parseRequestLine(lines[0])
	if tok != token.OK {
		return model.Request{}, tok
	}

	path, query := splitURI(rawURI)

	hdr := make(http.Header)
	for _, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			break
		}
		name, value, tok := parseHeaderLine(line)
		if tok != token.OK {
			return model.Request{}, tok
		}
		hdr.Add(name, value)
	}

	return model.Request{
		Method:   method,
		Path:     path,
		RawQuery: query,
		Version:  version,
		Header:   hdr,
		Body:     body,
	}, token.OK
}

func toUTF8(b []byte) (string, bool) {
	s := string(b)
	// Header bytes must be ASCII; anything above 0x7f fails the request.
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return "", false
		}
	}
	return s, true
}

func parseRequestLine(line string) (method, uri, version string, tok token.ErrorToken) {
	line = strings.TrimSuffix(line, "\r")
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return "", "", "", token.HeadersInvalidRequestLine
	}

	method, uri, version = fields[0], fields[1], fields[2]

	// Methods share the token grammar header field names use.
	if !httpguts.ValidHeaderFieldName(method) {
		return "", "", "", token.HeadersInvalidMethod
	}

	if strings.ToUpper(version) != wantVersion {
		return "", "", "", token.HeadersInvalidVersion
	}

	return method, uri, wantVersion, token.OK
}

func splitURI(raw string) (path, query string) {
	path, query, found := strings.Cut(raw, "?")
	if !found {
		return path, ""
	}
	return path, query
}

func parseHeaderLine(line string) (name, value string, tok token.ErrorToken) {
	rawName, rawValue, found := strings.Cut(line, ": ")
	if !found {
		return "", "", token.HeadersInvalidHeaderName
	}

	if !httpguts.ValidHeaderFieldName(rawName) {
		return "", "", token.HeadersInvalidHeaderName
	}

	value = strings.TrimSpace(rawValue)
	if !httpguts.ValidHeaderFieldValue(value) {
		return "", "", token.HeadersInvalidHeaderValue
	}

	return rawName, value, token.OK
}
