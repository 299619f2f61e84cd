package requestid

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const (
	// HeaderName carries a caller-supplied correlation ID
	HeaderName = "X-Request-ID"
	// MaxLength matches the length of a UUID string
	MaxLength = 36
)

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	hyphenRuns   = regexp.MustCompile(`-{2,}`)
)

// New returns a random UUID request ID
func New() string {
	return uuid.New().String()
}

// Sanitize reduces a caller-supplied ID to [a-zA-Z0-9._-], collapsing runs of
// hyphens and capping the result at MaxLength. Spaces become hyphens.
func Sanitize(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "-")
	s = invalidChars.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}

// FromHeader keeps the caller's ID so API events can be joined with caller
// logs; an absent or unusable value yields a fresh UUID.
func FromHeader(value string) string {
	if id := Sanitize(value); id != "" {
		return id
	}
	return New()
}

// FromRequest resolves the request ID for ctx and echoes it in the response header
func FromRequest(ctx *fasthttp.RequestCtx) string {
	id := FromHeader(string(ctx.Request.Header.Peek(HeaderName)))
	ctx.Response.Header.Set(HeaderName, id)
	return id
}
