// internal/protocol/pipe_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"serial2pipe/internal/model"
)

// PipeTransport dials and listens on byte-stream pipes
type PipeTransport interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)
	Listen(network, address string, bufferSize int) (net.Listener, error)
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// PipeEndpoint implements Endpoint for a named pipe with a single peer
type PipeEndpoint struct {
	config    *PipeConfig
	transport PipeTransport
	logger    *zap.Logger
	mutex     sync.RWMutex
	conn      net.Conn
	isOpen    bool
	broken    atomic.Bool

	// server role only
	listener net.Listener
	pending  chan acceptResult
}

// NewPipeEndpoint creates a pipe endpoint. Nothing is dialed or created until
// Prepare or EnsureOpen. A nil transport selects the platform default.
func NewPipeEndpoint(config *PipeConfig, transport PipeTransport, logger *zap.Logger) (*PipeEndpoint, error) {
	if err := ValidatePipeConfig(config); err != nil {
		return nil, err
	}
	if transport == nil {
		transport = DefaultPipeTransport()
	}

	return &PipeEndpoint{
		config:    config,
		transport: transport,
		logger: logger.With(
			zap.String("endpoint", "pipe"),
			zap.String("pipe", config.Name),
			zap.String("role", string(config.Role)),
		),
	}, nil
}

// Name returns the pipe address
func (pe *PipeEndpoint) Name() string {
	return pe.config.Name
}

// Kind returns the endpoint kind
func (pe *PipeEndpoint) Kind() model.EndpointKind {
	return model.EndpointKindPipe
}

// Role returns whether the endpoint dials or accepts its peer
func (pe *PipeEndpoint) Role() model.PipeRole {
	return pe.config.Role
}

// Prepare acquires the pipe at cold start. A server only needs its listener;
// waiting for the peer happens in the relay loop.
func (pe *PipeEndpoint) Prepare(ctx context.Context) error {
	if pe.config.Role != model.PipeRoleServer {
		return pe.EnsureOpen(ctx)
	}

	pe.mutex.Lock()
	defer pe.mutex.Unlock()
	return pe.listenLocked()
}

// EnsureOpen connects to, or accepts, a peer unless one is already connected
func (pe *PipeEndpoint) EnsureOpen(ctx context.Context) error {
	if pe.IsOpen() {
		return nil
	}

	pe.mutex.Lock()
	defer pe.mutex.Unlock()

	if pe.isOpen && !pe.broken.Load() {
		return nil
	}

	if pe.conn != nil {
		if err := pe.conn.Close(); err != nil {
			pe.logger.Debug("Closing broken pipe connection failed", zap.Error(err))
		}
		pe.conn = nil
		pe.isOpen = false
		pe.logger.Info("Pipe peer disconnected")
	}

	var (
		conn net.Conn
		err  error
	)
	if pe.config.Role == model.PipeRoleServer {
		conn, err = pe.acceptLocked(ctx)
	} else {
		conn, err = pe.dialLocked(ctx)
	}
	if err != nil {
		return err
	}

	pe.conn = conn
	pe.isOpen = true
	pe.broken.Store(false)

	pe.logger.Info("Pipe peer connected")
	return nil
}

func (pe *PipeEndpoint) dialLocked(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, pe.config.ConnectTimeout)
	defer cancel()

	conn, err := pe.transport.Dial(dialCtx, pe.config.Network, pe.config.Name)
	if err != nil {
		return nil, newError(transportErrorKind(err), pe.Name(), "dial", err)
	}
	return conn, nil
}

func (pe *PipeEndpoint) listenLocked() error {
	if pe.listener != nil {
		return nil
	}

	l, err := pe.transport.Listen(pe.config.Network, pe.config.Name, pe.config.BufferSize)
	if err != nil {
		return newError(transportErrorKind(err), pe.Name(), "listen", err)
	}

	pe.listener = l
	pe.logger.Info("Pipe server listening")
	return nil
}

// acceptLocked waits for one client. An Accept that outlives the wait stays
// pending and is picked up by the next call, so no client is lost.
func (pe *PipeEndpoint) acceptLocked(ctx context.Context) (net.Conn, error) {
	if err := pe.listenLocked(); err != nil {
		return nil, err
	}

	if pe.pending == nil {
		ch := make(chan acceptResult, 1)
		l := pe.listener
		go func() {
			c, err := l.Accept()
			ch <- acceptResult{conn: c, err: err}
		}()
		pe.pending = ch
	}

	timer := time.NewTimer(pe.config.ConnectTimeout)
	defer timer.Stop()

	select {
	case res := <-pe.pending:
		pe.pending = nil
		if res.err != nil {
			// The listener is unusable; create a fresh one next time
			pe.listener.Close()
			pe.listener = nil
			return nil, newError(KindConnectFailed, pe.Name(), "accept", res.err)
		}
		return res.conn, nil
	case <-timer.C:
		return nil, newError(KindConnectFailed, pe.Name(), "accept",
			fmt.Errorf("no client connected within %s", pe.config.ConnectTimeout))
	case <-ctx.Done():
		return nil, newError(KindConnectFailed, pe.Name(), "accept", ctx.Err())
	}
}

// Close disconnects the peer and, in server role, removes the pipe.
// Closing a closed endpoint is a no-op.
func (pe *PipeEndpoint) Close() error {
	pe.mutex.Lock()
	defer pe.mutex.Unlock()

	var errs []error
	if pe.conn != nil {
		if err := pe.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close pipe connection: %w", err))
		}
		pe.conn = nil
	}
	if pe.listener != nil {
		if err := pe.listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close pipe listener: %w", err))
		}
		pe.listener = nil
		if pe.pending != nil {
			// Accept has been unblocked by the listener close
			if res := <-pe.pending; res.conn != nil {
				res.conn.Close()
			}
			pe.pending = nil
		}
	}

	wasOpen := pe.isOpen
	pe.isOpen = false
	pe.broken.Store(false)

	if wasOpen {
		pe.logger.Info("Pipe closed")
	}
	return errors.Join(errs...)
}

// IsOpen returns whether a peer is connected and no failure was seen since
func (pe *PipeEndpoint) IsOpen() bool {
	pe.mutex.RLock()
	defer pe.mutex.RUnlock()
	return pe.isOpen && pe.conn != nil && !pe.broken.Load()
}

// ReadChunk reads whatever is available, waiting up to timeout for the first byte
func (pe *PipeEndpoint) ReadChunk(buf []byte, timeout time.Duration) (int, error) {
	pe.mutex.RLock()
	defer pe.mutex.RUnlock()

	conn := pe.conn
	if !pe.isOpen || conn == nil || pe.broken.Load() {
		return 0, newError(KindIOFailure, pe.Name(), "read", ErrNotOpen)
	}

	if timeout <= 0 {
		timeout = pe.config.ReadTimeout
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		pe.broken.Store(true)
		return 0, newError(KindIOFailure, pe.Name(), "read", err)
	}

	n, err := conn.Read(buf)
	if err != nil {
		if isDeadlineError(err) {
			if n > 0 {
				return n, nil
			}
			return 0, newError(KindTimeout, pe.Name(), "read", nil)
		}
		pe.broken.Store(true)
		if n > 0 {
			return n, nil
		}
		return 0, newError(KindIOFailure, pe.Name(), "read", err)
	}

	if n == 0 {
		return 0, newError(KindTimeout, pe.Name(), "read", nil)
	}
	return n, nil
}

// WriteChunk writes all of data. Sockets and byte-mode pipes are unbuffered on
// this side, so a completed write is already readable by the peer.
func (pe *PipeEndpoint) WriteChunk(data []byte) error {
	pe.mutex.RLock()
	defer pe.mutex.RUnlock()

	conn := pe.conn
	if !pe.isOpen || conn == nil || pe.broken.Load() {
		return newError(KindIOFailure, pe.Name(), "write", ErrNotOpen)
	}

	if pe.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(pe.config.WriteTimeout)); err != nil {
			pe.broken.Store(true)
			return newError(KindIOFailure, pe.Name(), "write", err)
		}
	}

	written := 0
	for written < len(data) {
		n, err := conn.Write(data[written:])
		written += n
		if err != nil {
			pe.broken.Store(true)
			return newError(KindIOFailure, pe.Name(), "write",
				fmt.Errorf("wrote %d of %d bytes: %w", written, len(data), err))
		}
	}

	pe.logger.Debug("Pipe write completed", zap.Int("bytes", len(data)))
	return nil
}

func transportErrorKind(err error) ErrorKind {
	if errors.Is(err, ErrConfigInvalid) {
		return KindConfigInvalid
	}
	return KindConnectFailed
}

func isDeadlineError(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
