//go:build linux

package relay

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"serial2pipe/internal/model"
	"serial2pipe/internal/protocol"
)

func readN(t *testing.T, r io.Reader, n int) []byte {
	t.Helper()
	out := make(chan []byte, 1)
	go func() {
		buf := make([]byte, n)
		m, _ := io.ReadFull(r, buf)
		out <- buf[:m]
	}()
	select {
	case got := <-out:
		return got
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout reading %d bytes", n)
		return nil
	}
}

// A pseudo-terminal stands in for the serial pair and a unix socket for the pipe
func TestRelay_PseudoTerminalToPipe(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pty not available: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	dir, err := os.MkdirTemp("", "s2p")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "com1.sock")

	device, pipe, err := protocol.CreateEndpoints(
		&protocol.SerialConfig{Port: slave.Name(), BaudRate: 9600, ReadTimeout: 50 * time.Millisecond},
		&protocol.PipeConfig{
			Name:           sock,
			Role:           model.PipeRoleServer,
			Network:        protocol.NetworkUnix,
			ConnectTimeout: 100 * time.Millisecond,
			ReadTimeout:    50 * time.Millisecond,
		},
		nil,
		zap.NewNop(),
	)
	require.NoError(t, err)

	c := NewCoordinator(device, pipe, Options{
		ReadTimeout:     50 * time.Millisecond,
		Backoff:         50 * time.Millisecond,
		ShutdownTimeout: time.Second,
	}, zap.NewNop(), nil)
	if err := c.Start(context.Background()); err != nil {
		// The pipe only listens at start, so a failure here is the pty
		t.Skipf("cannot open pty as serial port: %v", err)
	}
	defer c.Stop()

	client, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, c.Ready, 3*time.Second, 10*time.Millisecond)

	_, err = master.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, readN(t, client, 3))

	_, err = client.Write([]byte{0xAA, 0xBB})
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, readN(t, master, 2))

	// Peer restart: the relay accepts the next client and resumes
	require.NoError(t, client.Close())
	second, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer second.Close()

	require.Eventually(t, func() bool {
		return c.Status().Directions[1].ReadFailures > 0 && c.Ready()
	}, 3*time.Second, 10*time.Millisecond)

	_, err = master.Write([]byte{0x10, 0x20})
	require.NoError(t, err)
	require.Equal(t, []byte{0x10, 0x20}, readN(t, second, 2))

	report := c.ReportStats()
	require.Equal(t, uint64(5), report.DeviceToPipe)
	require.Equal(t, uint64(2), report.PipeToDevice)
}
