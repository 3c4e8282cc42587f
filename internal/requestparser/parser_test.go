package requestparser_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawserve/httpcore/internal/requestparser"
	"github.com/rawserve/httpcore/internal/token"
)

func TestParseSimpleGet(t *testing.T) {
	raw := []byte("GET /index.html?x=1 HTTP/1.1\r\nHost: example.com\r\nUser-Agent: test\r\n\r\n")
	req, tok := requestparser.Parse(raw, nil)
	require.Equal(t, token.OK, tok)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, "x=1", req.RawQuery)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "example.com", req.Header.Get("Host"))
	assert.Equal(t, "test", req.Header.Get("User-Agent"))
}

func TestParseEmptyHeaders(t *testing.T) {
	_, tok := requestparser.Parse(nil, nil)
	assert.Equal(t, token.HeadersBufferEmpty, tok)
}

func TestParseInvalidRequestLine(t *testing.T) {
	raw := []byte("GET /index.html HTTP/1.1 extra\r\n\r\n")
	_, tok := requestparser.Parse(raw, nil)
	assert.Equal(t, token.HeadersInvalidRequestLine, tok)
}

func TestParseInvalidMethod(t *testing.T) {
	raw := []byte("GE(T /index.html HTTP/1.1\r\n\r\n")
	_, tok := requestparser.Parse(raw, nil)
	assert.Equal(t, token.HeadersInvalidMethod, tok)
}

func TestParseInvalidVersion(t *testing.T) {
	raw := []byte("GET /index.html HTTP/2.0\r\n\r\n")
	_, tok := requestparser.Parse(raw, nil)
	assert.Equal(t, token.HeadersInvalidVersion, tok)
}

func TestParseVersionIsCaseInsensitive(t *testing.T) {
	raw := []byte("GET / http/1.1\r\n\r\n")
	req, tok := requestparser.Parse(raw, nil)
	require.Equal(t, token.OK, tok)
	assert.Equal(t, "HTTP/1.1", req.Version)
}

func TestParseDuplicateHeadersAreAppended(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nX-Tag: a\r\nX-Tag: b\r\n\r\n")
	req, tok := requestparser.Parse(raw, nil)
	require.Equal(t, token.OK, tok)
	assert.Equal(t, []string{"a", "b"}, req.Header.Values("X-Tag"))
}

func TestParseInvalidHeaderLineMissingColonSpace(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nX-Tag:a\r\n\r\n")
	_, tok := requestparser.Parse(raw, nil)
	assert.Equal(t, token.HeadersInvalidHeaderName, tok)
}

func TestParseNonASCIIHeadersRejected(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nX-Tag: caf\xc3\xa9\r\n\r\n")
	_, tok := requestparser.Parse(raw, nil)
	assert.Equal(t, token.HeadersBufferToString, tok)
}

func TestParseBodyPassedThrough(t *testing.T) {
	raw := []byte("POST / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	req, tok := requestparser.Parse(raw, []byte("payload"))
	require.Equal(t, token.OK, tok)
	assert.Equal(t, []byte("payload"), req.Body)
}

func TestParseSerializeRoundTrip(t *testing.T) {
	raw := []byte("POST /echo?x=1 HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\n")
	req1, tok := requestparser.Parse(raw, []byte("hello"))
	require.Equal(t, token.OK, tok)

	wire := req1.Serialize()
	idx := bytes.Index(wire, []byte("\r\n\r\n"))
	require.NotEqual(t, -1, idx)

	req2, tok := requestparser.Parse(wire[:idx+4], wire[idx+4:])
	require.Equal(t, token.OK, tok)
	assert.Equal(t, req1, req2)
	assert.Equal(t, wire, req2.Serialize())
}

func TestURI(t *testing.T) {
	raw := []byte("GET /a/b?c=d HTTP/1.1\r\n\r\n")
	req, _ := requestparser.Parse(raw, nil)
	assert.Equal(t, "/a/b?c=d", req.URI())
}
