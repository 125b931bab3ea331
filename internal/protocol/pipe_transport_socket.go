// internal/protocol/pipe_transport_socket.go
package protocol

import (
	"context"
	"fmt"
	"net"
	"os"
)

// socketTransport serves the unix and tcp pipe networks
type socketTransport struct{}

func (socketTransport) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

func (socketTransport) Listen(network, address string, _ int) (net.Listener, error) {
	if network == NetworkUnix {
		// A socket file left by a crashed run blocks the listen
		if fi, err := os.Stat(address); err == nil && fi.Mode()&os.ModeSocket != 0 {
			if err := os.Remove(address); err != nil {
				return nil, fmt.Errorf("failed to remove stale socket: %w", err)
			}
		}
	}
	return net.Listen(network, address)
}
