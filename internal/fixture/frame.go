// internal/fixture/frame.go
package fixture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"serial2pipe/internal/protocol"
)

// FrameSize is the length of a generated device frame
const FrameSize = 13

const (
	checksumSpan = 9
	frameMarker  = 0x03
)

// frameHeader fills bytes 2..8 of every frame
var frameHeader = [7]byte{0x02, 0x30, 0x31, 0x00, 0x01, 0x00, 0x00}

// Checksum returns the two's complement of the byte sum, so that the bytes
// plus the checksum add up to zero
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}

// BuildFrame returns the frame with the given sequence number:
// length, sequence, header, two reserved bytes, checksum of bytes 0..8, marker.
// The relay never looks inside these frames.
func BuildFrame(seq byte) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = FrameSize
	frame[1] = seq
	copy(frame[2:9], frameHeader[:])
	frame[11] = Checksum(frame[:checksumSpan])
	frame[12] = frameMarker
	return frame
}

// FrameGenerator emits frames with an increasing sequence number
type FrameGenerator struct {
	endpoint protocol.Endpoint
	out      io.Writer
	logger   *zap.Logger
	backoff  time.Duration
	seq      byte
}

// NewFrameGenerator creates a generator writing frames to endpoint
func NewFrameGenerator(endpoint protocol.Endpoint, out io.Writer, logger *zap.Logger) *FrameGenerator {
	return &FrameGenerator{
		endpoint: endpoint,
		out:      out,
		logger:   logger.With(zap.String("fixture", "frame-generator")),
		backoff:  time.Second,
	}
}

// Next returns the next frame and advances the sequence number
func (g *FrameGenerator) Next() []byte {
	frame := BuildFrame(g.seq)
	g.seq++
	return frame
}

// Send connects if needed and writes the next frame. A failed frame is not
// retried; its sequence number is consumed.
func (g *FrameGenerator) Send(ctx context.Context) error {
	if err := g.endpoint.EnsureOpen(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	frame := g.Next()
	if err := g.endpoint.WriteChunk(frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}

	fmt.Fprintf(g.out, "Sent %d bytes to named pipe: %X\n", len(frame), frame)
	return nil
}

// Run sends one frame per line read from trigger until trigger ends or ctx
// is cancelled
func (g *FrameGenerator) Run(ctx context.Context, trigger io.Reader) error {
	defer g.endpoint.Close()

	lines := make(chan struct{})
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(trigger)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprintln(g.out, "Press Enter to send a frame")
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := g.Send(ctx); err != nil {
				g.logger.Warn("Frame not sent", zap.Error(err))
			}
		}
	}
}
