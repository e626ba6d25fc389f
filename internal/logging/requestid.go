package logging

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ctxKey struct{}

// RequestIDHeader is read from inbound requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// NewRequestID returns a 12-character hex identifier.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// RequestIDFromHeader keeps a caller-supplied id when it is short and made of
// [A-Za-z0-9._-]; anything else is replaced with a fresh id.
func RequestIDFromHeader(v string) string {
	if v == "" || len(v) > maxRequestIDLen {
		return NewRequestID()
	}
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return NewRequestID()
		}
	}
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestIDFrom returns the request id stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
