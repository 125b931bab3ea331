// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"serial2pipe/internal/model"
)

// SerialEndpoint implements Endpoint for a serial device
type SerialEndpoint struct {
	config *SerialConfig
	openFn func(name string, mode *serial.Mode) (serial.Port, error)
	port   serial.Port
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	// broken is set by a failed read or write; the next EnsureOpen reopens the port
	broken atomic.Bool
	// readTimeout is the timeout currently applied to port
	readTimeout atomic.Int64
}

// NewSerialEndpoint creates a serial endpoint. The port is not opened.
func NewSerialEndpoint(config *SerialConfig, logger *zap.Logger) (*SerialEndpoint, error) {
	if err := ValidateSerialConfig(config); err != nil {
		return nil, err
	}

	return &SerialEndpoint{
		config: config,
		openFn: serial.Open,
		logger: logger.With(
			zap.String("endpoint", "serial"),
			zap.String("port", config.Port),
		),
	}, nil
}

// Name returns the device path
func (se *SerialEndpoint) Name() string {
	return se.config.Port
}

// Kind returns the endpoint kind
func (se *SerialEndpoint) Kind() model.EndpointKind {
	return model.EndpointKindSerial
}

// EnsureOpen opens the serial port unless it is already open and healthy
func (se *SerialEndpoint) EnsureOpen(ctx context.Context) error {
	if se.IsOpen() {
		return nil
	}

	se.mutex.Lock()
	defer se.mutex.Unlock()

	if se.isOpen && !se.broken.Load() {
		return nil
	}

	select {
	case <-ctx.Done():
		return newError(KindConnectFailed, se.Name(), "open", ctx.Err())
	default:
	}

	if se.port != nil {
		// Reopen after a failure; the old handle is unusable
		if err := se.port.Close(); err != nil {
			se.logger.Debug("Closing broken serial port failed", zap.Error(err))
		}
		se.port = nil
		se.isOpen = false
	}

	se.logger.Info("Opening serial port",
		zap.Int("baud_rate", se.config.BaudRate),
		zap.Int("data_bits", se.config.DataBits),
		zap.String("parity", se.config.Parity),
		zap.Int("stop_bits", se.config.StopBits),
	)

	port, err := se.openFn(se.config.Port, se.mode())
	if err != nil {
		return newError(classifyOpenError(err), se.Name(), "open", err)
	}

	if err := port.SetReadTimeout(se.config.ReadTimeout); err != nil {
		port.Close()
		return newError(KindConnectFailed, se.Name(), "open", fmt.Errorf("failed to set read timeout: %w", err))
	}

	se.port = port
	se.isOpen = true
	se.broken.Store(false)
	se.readTimeout.Store(int64(se.config.ReadTimeout))

	se.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial port. Closing a closed endpoint is a no-op.
func (se *SerialEndpoint) Close() error {
	se.mutex.Lock()
	defer se.mutex.Unlock()

	se.broken.Store(false)
	if !se.isOpen || se.port == nil {
		se.isOpen = false
		return nil
	}

	err := se.port.Close()
	se.port = nil
	se.isOpen = false

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	se.logger.Info("Serial port closed")
	return nil
}

// IsOpen returns whether the port is open and has not failed since
func (se *SerialEndpoint) IsOpen() bool {
	se.mutex.RLock()
	defer se.mutex.RUnlock()
	return se.isOpen && se.port != nil && !se.broken.Load()
}

// ReadChunk reads whatever is available, waiting up to timeout for the first byte
func (se *SerialEndpoint) ReadChunk(buf []byte, timeout time.Duration) (int, error) {
	se.mutex.RLock()
	defer se.mutex.RUnlock()

	if !se.isOpen || se.port == nil || se.broken.Load() {
		return 0, newError(KindIOFailure, se.Name(), "read", ErrNotOpen)
	}

	if timeout <= 0 {
		timeout = se.config.ReadTimeout
	}
	if int64(timeout) != se.readTimeout.Load() {
		if err := se.port.SetReadTimeout(timeout); err != nil {
			se.broken.Store(true)
			return 0, newError(KindIOFailure, se.Name(), "read", err)
		}
		se.readTimeout.Store(int64(timeout))
	}

	n, err := se.port.Read(buf)
	if err != nil {
		se.broken.Store(true)
		if n > 0 {
			// Deliver what arrived; the failure surfaces on the next call
			return n, nil
		}
		return 0, newError(KindIOFailure, se.Name(), "read", err)
	}

	if n == 0 {
		return 0, newError(KindTimeout, se.Name(), "read", nil)
	}

	return n, nil
}

// WriteChunk writes all of data to the serial port
func (se *SerialEndpoint) WriteChunk(data []byte) error {
	se.mutex.RLock()
	defer se.mutex.RUnlock()

	if !se.isOpen || se.port == nil || se.broken.Load() {
		return newError(KindIOFailure, se.Name(), "write", ErrNotOpen)
	}

	written := 0
	for written < len(data) {
		n, err := se.port.Write(data[written:])
		if err != nil {
			se.broken.Store(true)
			return newError(KindIOFailure, se.Name(), "write", err)
		}
		if n == 0 {
			se.broken.Store(true)
			return newError(KindIOFailure, se.Name(), "write",
				fmt.Errorf("incomplete write: wrote %d of %d bytes", written, len(data)))
		}
		written += n
	}

	se.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

// mode builds the line settings for the port
func (se *SerialEndpoint) mode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: se.config.BaudRate,
		DataBits: se.config.DataBits,
	}

	switch se.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}

	switch se.config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	case 15:
		mode.StopBits = serial.OnePointFiveStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	return mode
}

// classifyOpenError separates unusable port settings from transient open failures
func classifyOpenError(err error) ErrorKind {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound, serial.InvalidSerialPort, serial.InvalidSpeed,
			serial.InvalidDataBits, serial.InvalidParity, serial.InvalidStopBits:
			return KindConfigInvalid
		}
		return KindConnectFailed
	}
	if errors.Is(err, fs.ErrNotExist) {
		return KindConfigInvalid
	}
	return KindConnectFailed
}
