// Package host defines what fern needs from the environment it runs in: the
// name of the document being synchronized and the remote service connection.
package host

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

// DocumentSource supplies the name of the document being synchronized
type DocumentSource interface {
	DocumentName(ctx context.Context) (string, error)
}

// ConnectionSource supplies the remote service connection. ok is false when it is not configured.
type ConnectionSource interface {
	Connection(ctx context.Context) (conn models.Connection, ok bool)
}

// StaticDocument is a DocumentSource with a fixed name
type StaticDocument string

func (d StaticDocument) DocumentName(context.Context) (string, error) {
	return string(d), nil
}

// StaticConnection is a ConnectionSource with fixed parameters
type StaticConnection models.Connection

func (c StaticConnection) Connection(context.Context) (models.Connection, bool) {
	conn := models.Connection(c)
	return conn, !conn.Empty()
}

// ConnectionFunc adapts a function to ConnectionSource
type ConnectionFunc func(ctx context.Context) (models.Connection, bool)

func (f ConnectionFunc) Connection(ctx context.Context) (models.Connection, bool) {
	return f(ctx)
}

type connectionKey struct{}

// WithConnection pins conn to ctx so every call made under ctx uses the same connection
func WithConnection(ctx context.Context, conn models.Connection) context.Context {
	return context.WithValue(ctx, connectionKey{}, conn)
}

// ConnectionFor returns the connection pinned to ctx, falling back to source
func ConnectionFor(ctx context.Context, source ConnectionSource) (models.Connection, bool) {
	if conn, ok := ctx.Value(connectionKey{}).(models.Connection); ok && !conn.Empty() {
		return conn, true
	}
	if source == nil {
		return models.Connection{}, false
	}
	return source.Connection(ctx)
}
