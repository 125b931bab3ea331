//go:build windows

// internal/protocol/pipe_transport_windows.go
package protocol

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

// DefaultPipeNetwork is the network used when none is configured
const DefaultPipeNetwork = NetworkPipe

// DefaultPipeName is the pipe address used when none is configured
const DefaultPipeName = `\\.\pipe\com1`

type platformTransport struct{}

// DefaultPipeTransport returns the transport for this platform. On Windows the
// pipe network uses real named pipes; unix and tcp fall back to sockets.
func DefaultPipeTransport() PipeTransport {
	return platformTransport{}
}

func (platformTransport) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if network == NetworkPipe {
		return winio.DialPipeContext(ctx, address)
	}
	return socketTransport{}.Dial(ctx, network, address)
}

func (platformTransport) Listen(network, address string, bufferSize int) (net.Listener, error) {
	if network == NetworkPipe {
		// Byte mode, not message mode
		return winio.ListenPipe(address, &winio.PipeConfig{
			MessageMode:      false,
			InputBufferSize:  int32(bufferSize),
			OutputBufferSize: int32(bufferSize),
		})
	}
	return socketTransport{}.Listen(network, address, bufferSize)
}
