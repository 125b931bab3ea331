// internal/fixture/echo.go
package fixture

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"serial2pipe/internal/protocol"
)

// EchoPeer is a pipe-side test peer. It prints every chunk it receives as hex
// and can send it back.
type EchoPeer struct {
	endpoint    protocol.Endpoint
	out         io.Writer
	echo        bool
	readTimeout time.Duration
	backoff     time.Duration
	logger      *zap.Logger
}

// NewEchoPeer creates a peer reading from endpoint and printing to out
func NewEchoPeer(endpoint protocol.Endpoint, out io.Writer, echo bool, logger *zap.Logger) *EchoPeer {
	return &EchoPeer{
		endpoint:    endpoint,
		out:         out,
		echo:        echo,
		readTimeout: protocol.DefaultReadTimeout,
		backoff:     time.Second,
		logger:      logger.With(zap.String("fixture", "echo-peer")),
	}
}

// Run serves one peer at a time until ctx is cancelled, waiting for the next
// one when the current peer leaves
func (p *EchoPeer) Run(ctx context.Context) error {
	defer p.endpoint.Close()

	if err := protocol.Prepare(ctx, p.endpoint); err != nil && protocol.KindOf(err) == protocol.KindConfigInvalid {
		return err
	}

	buf := make([]byte, protocol.DefaultBufferSize)
	connected, waiting := p.endpoint.IsOpen(), false
	if connected {
		fmt.Fprintln(p.out, "Client connected")
	}

	for ctx.Err() == nil {
		if !p.endpoint.IsOpen() {
			if connected {
				fmt.Fprintln(p.out, "Client disconnected")
				connected = false
			}
			if !waiting {
				fmt.Fprintln(p.out, "Waiting for client to connect...")
				waiting = true
			}
			if err := p.endpoint.EnsureOpen(ctx); err != nil {
				p.logger.Debug("No peer yet", zap.Error(err))
				p.wait(ctx)
				continue
			}
			fmt.Fprintln(p.out, "Client connected")
			connected, waiting = true, false
		}

		n, err := p.endpoint.ReadChunk(buf, p.readTimeout)
		if err != nil {
			if !protocol.IsTimeout(err) {
				p.logger.Debug("Read failed", zap.Error(err))
			}
			continue
		}
		if n == 0 {
			continue
		}

		fmt.Fprintf(p.out, "Received %d bytes from named pipe: %X\n", n, buf[:n])

		if p.echo {
			if err := p.endpoint.WriteChunk(buf[:n]); err != nil {
				p.logger.Warn("Echo failed", zap.Error(err))
			}
		}
	}

	return nil
}

func (p *EchoPeer) wait(ctx context.Context) {
	timer := time.NewTimer(p.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
