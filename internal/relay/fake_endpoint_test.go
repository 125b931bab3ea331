package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"serial2pipe/internal/model"
	"serial2pipe/internal/protocol"
)

// fakeEndpoint is an in-memory Endpoint. Chunks sent on incoming are returned
// by ReadChunk one per call; written chunks are recorded and copied to written.
type fakeEndpoint struct {
	name string
	kind model.EndpointKind

	mu         sync.Mutex
	open       bool
	openErr    error
	opens      int
	closes     int
	readFails  int
	writeFails int
	zeroReads  bool
	writes     [][]byte
	writeCalls int

	incoming chan []byte
	written  chan []byte
}

func newFakeEndpoint(name string, kind model.EndpointKind) *fakeEndpoint {
	return &fakeEndpoint{
		name:     name,
		kind:     kind,
		incoming: make(chan []byte, 16),
		written:  make(chan []byte, 16),
	}
}

func (f *fakeEndpoint) EnsureOpen(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &protocol.Error{Kind: protocol.KindConnectFailed, Op: "open", Endpoint: f.name, Err: err}
	}
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	f.opens++
	return nil
}

func (f *fakeEndpoint) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closes++
	return nil
}

func (f *fakeEndpoint) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeEndpoint) ReadChunk(buf []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return 0, &protocol.Error{Kind: protocol.KindIOFailure, Op: "read", Endpoint: f.name, Err: protocol.ErrNotOpen}
	}
	if f.readFails > 0 {
		f.readFails--
		f.open = false
		f.mu.Unlock()
		return 0, &protocol.Error{Kind: protocol.KindIOFailure, Op: "read", Endpoint: f.name, Err: errors.New("device unplugged")}
	}
	zero := f.zeroReads
	f.mu.Unlock()

	if zero {
		time.Sleep(timeout)
		return 0, nil
	}

	select {
	case chunk := <-f.incoming:
		return copy(buf, chunk), nil
	case <-time.After(timeout):
		return 0, &protocol.Error{Kind: protocol.KindTimeout, Op: "read", Endpoint: f.name}
	}
}

func (f *fakeEndpoint) WriteChunk(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writeCalls++
	if !f.open {
		return &protocol.Error{Kind: protocol.KindIOFailure, Op: "write", Endpoint: f.name, Err: protocol.ErrNotOpen}
	}
	if f.writeFails > 0 {
		f.writeFails--
		f.open = false
		return &protocol.Error{Kind: protocol.KindIOFailure, Op: "write", Endpoint: f.name, Err: errors.New("broken pipe")}
	}

	chunk := append([]byte(nil), data...)
	f.writes = append(f.writes, chunk)
	f.written <- chunk
	return nil
}

func (f *fakeEndpoint) Name() string             { return f.name }
func (f *fakeEndpoint) Kind() model.EndpointKind { return f.kind }

func (f *fakeEndpoint) set(fn func(f *fakeEndpoint)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeEndpoint) get(fn func(f *fakeEndpoint)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.RelayEvent
}

func (p *recordingPublisher) Publish(e model.RelayEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}
