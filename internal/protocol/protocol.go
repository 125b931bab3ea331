// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"

	"serial2pipe/internal/model"
)

// Endpoint is one side of the relay.
//
// An endpoint is either fully closed or fully open; EnsureOpen and Close are safe
// to call concurrently from both relay directions. Reads and writes are each
// performed by a single direction.
type Endpoint interface {
	// Connection lifecycle
	EnsureOpen(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data transfer
	ReadChunk(buf []byte, timeout time.Duration) (int, error)
	WriteChunk(data []byte) error

	// Identification
	Name() string
	Kind() model.EndpointKind
}

// Preparer is implemented by endpoints whose cold-start acquisition differs from
// EnsureOpen, such as a pipe server that only has to create its listener.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Prepare performs the cold-start acquisition of an endpoint
func Prepare(ctx context.Context, ep Endpoint) error {
	if p, ok := ep.(Preparer); ok {
		return p.Prepare(ctx)
	}
	return ep.EnsureOpen(ctx)
}
