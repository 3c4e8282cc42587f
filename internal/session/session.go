// Package session implements the process-wide session table: extracting a
// client's session cookie or minting a fresh one, and sweeping expired
// entries. The table itself is github.com/patrickmn/go-cache, a
// mutex-guarded map with a background TTL janitor.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/rawserve/httpcore/internal/token"
)

// CookieName is the name of the session cookie this server mints and reads.
const CookieName = "session_id"

// Tracker holds the shared session table for one server process.
type Tracker struct {
	store *cache.Cache
}

// New creates a Tracker whose entries live for ttl and are swept every
// sweepInterval by go-cache's background janitor.
func New(ttl, sweepInterval time.Duration) *Tracker {
	return &Tracker{store: cache.New(ttl, sweepInterval)}
}

// ExtractOrMint returns the session cookie value to use for this request:
// the one already presented via Cookie, or a freshly minted uuid. A
// Cookie header that is present but carries no well-formed "name=value"
// pair at all maps to HeadersInvalidCookie; a Cookie header that simply
// doesn't mention our cookie name is treated as first contact.
func (t *Tracker) ExtractOrMint(h http.Header) (string, token.ErrorToken) {
	raw := h.Get("Cookie")
	if raw == "" {
		return t.mint(), token.OK
	}

	id, present, wellFormed := lookupSessionCookie(raw)
	if !wellFormed {
		return "", token.HeadersInvalidCookie
	}
	if !present {
		return t.mint(), token.OK
	}

	if _, found := t.store.Get(id); found {
		// Refresh TTL on reuse so an active session doesn't expire mid-visit.
		t.store.SetDefault(id, struct{}{})
		return id, token.OK
	}

	// Cookie presented but unknown to this process (new process, or the
	// TTL already swept it): mint a replacement rather than fail the request.
	return t.mint(), token.OK
}

func (t *Tracker) mint() string {
	id := uuid.NewString()
	t.store.SetDefault(id, struct{}{})
	return id
}

// Sweep removes every expired session now, without waiting for the next
// janitor tick.
func (t *Tracker) Sweep() {
	t.store.DeleteExpired()
}

// Close flushes the session table; the janitor goroutine exits once the
// cache becomes unreachable.
func (t *Tracker) Close() {
	t.store.Flush()
}

// lookupSessionCookie scans a raw Cookie header for CookieName's value.
// present reports whether the name appeared at all; wellFormed reports
// whether the header parsed as a sequence of "name=value" pairs and, if
// our cookie was present, whether its value was itself well-formed.
func lookupSessionCookie(raw string) (value string, present, wellFormed bool) {
	sawAnyPair := false
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, v, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		sawAnyPair = true
		name = strings.TrimSpace(name)
		if name != CookieName {
			continue
		}
		v = strings.TrimSpace(v)
		if _, err := uuid.Parse(v); err != nil {
			return "", true, false
		}
		return v, true, true
	}
	if !sawAnyPair {
		return "", false, false
	}
	return "", false, true
}
