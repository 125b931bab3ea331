//go:build !windows

// internal/protocol/pipe_transport_other.go
package protocol

import (
	"context"
	"fmt"
	"net"
)

// DefaultPipeNetwork is the network used when none is configured
const DefaultPipeNetwork = NetworkUnix

// DefaultPipeName is the pipe address used when none is configured
const DefaultPipeName = "/tmp/com1.sock"

type platformTransport struct{}

// DefaultPipeTransport returns the transport for this platform. Outside Windows
// a unix domain socket stands in for the named pipe.
func DefaultPipeTransport() PipeTransport {
	return platformTransport{}
}

func (platformTransport) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if network == NetworkPipe {
		return nil, fmt.Errorf("%w: named pipes are not supported on this platform, use unix", ErrConfigInvalid)
	}
	return socketTransport{}.Dial(ctx, network, address)
}

func (platformTransport) Listen(network, address string, bufferSize int) (net.Listener, error) {
	if network == NetworkPipe {
		return nil, fmt.Errorf("%w: named pipes are not supported on this platform, use unix", ErrConfigInvalid)
	}
	return socketTransport{}.Listen(network, address, bufferSize)
}
