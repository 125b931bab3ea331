package protocol

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// fakePort implements the parts of serial.Port the endpoint uses
type fakePort struct {
	serial.Port

	mu       sync.Mutex
	reads    [][]byte
	readErr  error
	written  []byte
	timeouts []time.Duration
	closed   bool
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.reads) == 0 {
		return 0, nil
	}
	n := copy(buf, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Short writes exercise the write loop
	n := len(data)
	if n > 2 {
		n = 2
	}
	p.written = append(p.written, data[:n]...)
	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func newFakeSerial(t *testing.T) (*SerialEndpoint, *[]*fakePort, *[]*serial.Mode) {
	t.Helper()
	se, err := NewSerialEndpoint(&SerialConfig{Port: "COM7", BaudRate: 9600, Parity: "even", StopBits: 2}, zap.NewNop())
	require.NoError(t, err)

	var ports []*fakePort
	var modes []*serial.Mode
	se.openFn = func(name string, mode *serial.Mode) (serial.Port, error) {
		p := &fakePort{}
		ports = append(ports, p)
		modes = append(modes, mode)
		return p, nil
	}
	return se, &ports, &modes
}

func TestSerialEndpoint_OpenAppliesMode(t *testing.T) {
	se, ports, modes := newFakeSerial(t)

	require.NoError(t, se.EnsureOpen(context.Background()))
	require.NoError(t, se.EnsureOpen(context.Background()))
	require.True(t, se.IsOpen())
	require.Len(t, *ports, 1)

	mode := (*modes)[0]
	require.Equal(t, 9600, mode.BaudRate)
	require.Equal(t, 8, mode.DataBits)
	require.Equal(t, serial.EvenParity, mode.Parity)
	require.Equal(t, serial.TwoStopBits, mode.StopBits)
	require.Equal(t, []time.Duration{DefaultReadTimeout}, (*ports)[0].timeouts)
}

func TestSerialEndpoint_ReadWrite(t *testing.T) {
	se, ports, _ := newFakeSerial(t)
	require.NoError(t, se.EnsureOpen(context.Background()))
	port := (*ports)[0]
	port.reads = [][]byte{{0x01, 0x02, 0x03}}

	buf := make([]byte, 16)
	n, err := se.ReadChunk(buf, 250*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, buf[:n])
	require.Equal(t, 250*time.Millisecond, port.timeouts[len(port.timeouts)-1])

	// Nothing left: zero bytes is a timeout
	_, err = se.ReadChunk(buf, 250*time.Millisecond)
	require.True(t, IsTimeout(err))
	require.True(t, se.IsOpen())

	require.NoError(t, se.WriteChunk([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}))
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}, port.written)
}

func TestSerialEndpoint_ReadFailureForcesReopen(t *testing.T) {
	se, ports, _ := newFakeSerial(t)
	require.NoError(t, se.EnsureOpen(context.Background()))
	(*ports)[0].readErr = errors.New("device unplugged")

	_, err := se.ReadChunk(make([]byte, 4), 0)
	require.ErrorIs(t, err, ErrIOFailure)
	require.False(t, se.IsOpen())

	require.NoError(t, se.EnsureOpen(context.Background()))
	require.Len(t, *ports, 2)
	require.True(t, (*ports)[0].closed)
	require.True(t, se.IsOpen())
}

func TestSerialEndpoint_OpenFailure(t *testing.T) {
	se, _, _ := newFakeSerial(t)

	se.openFn = func(string, *serial.Mode) (serial.Port, error) {
		return nil, fmt.Errorf("open COM7: %w", fs.ErrNotExist)
	}
	err := se.EnsureOpen(context.Background())
	require.ErrorIs(t, err, ErrConfigInvalid)

	se.openFn = func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("resource busy")
	}
	err = se.EnsureOpen(context.Background())
	require.ErrorIs(t, err, ErrConnectFailed)
	require.False(t, se.IsOpen())
}

func TestSerialEndpoint_CancelledContext(t *testing.T) {
	se, ports, _ := newFakeSerial(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, se.EnsureOpen(ctx), ErrConnectFailed)
	require.Empty(t, *ports)
}

func TestSerialEndpoint_CloseIsIdempotent(t *testing.T) {
	se, ports, _ := newFakeSerial(t)

	require.NoError(t, se.Close())
	require.NoError(t, se.EnsureOpen(context.Background()))
	require.NoError(t, se.Close())
	require.NoError(t, se.Close())
	require.True(t, (*ports)[0].closed)

	_, err := se.ReadChunk(make([]byte, 1), time.Millisecond)
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestSerialEndpoint_ConcurrentEnsureOpen(t *testing.T) {
	se, ports, _ := newFakeSerial(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- se.EnsureOpen(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.True(t, se.IsOpen())
	require.Len(t, *ports, 1)

	// Opens and closes racing each other leave no handle behind
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				se.EnsureOpen(context.Background())
			} else {
				se.Close()
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, se.Close())
	require.False(t, se.IsOpen())
	for _, p := range *ports {
		require.True(t, p.closed)
	}
}
