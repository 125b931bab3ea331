// internal/relay/direction.go
package relay

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"serial2pipe/internal/model"
	"serial2pipe/internal/protocol"
	"serial2pipe/internal/utils"
)

// Publisher receives relay events. The event bus implements it.
type Publisher interface {
	Publish(event model.RelayEvent)
}

// Direction moves bytes from one endpoint to another, chunk by chunk.
// Each direction owns its read buffer; the only state shared with the
// coordinator is its counters.
type Direction struct {
	name        model.DirectionName
	source      protocol.Endpoint
	destination protocol.Endpoint
	readTimeout time.Duration
	backoff     time.Duration
	buffer      []byte
	logger      *utils.EndpointLogger
	publisher   Publisher

	pending       atomic.Uint64 // bytes since the last report
	total         atomic.Uint64
	readFailures  atomic.Uint64
	writeFailures atomic.Uint64
	lastActivity  atomic.Int64 // unix nanoseconds, 0 before the first chunk
	state         atomic.Value
}

// NewDirection creates a direction reading from source and writing to destination
func NewDirection(name model.DirectionName, source, destination protocol.Endpoint, options Options, logger *zap.Logger, publisher Publisher) *Direction {
	options = options.withDefaults()

	d := &Direction{
		name:        name,
		source:      source,
		destination: destination,
		readTimeout: options.ReadTimeout,
		backoff:     options.Backoff,
		buffer:      make([]byte, options.BufferSize),
		logger:      utils.NewEndpointLogger(logger, string(name), source.Name(), destination.Name()),
		publisher:   publisher,
	}
	d.state.Store(model.DirectionStateDisconnected)
	return d
}

// Name returns the direction label
func (d *Direction) Name() model.DirectionName {
	return d.name
}

// Run transfers data until ctx is cancelled. Connect and I/O failures are
// retried forever after a fixed backoff.
func (d *Direction) Run(ctx context.Context) {
	defer d.setState(model.DirectionStateStopped)

	d.logger.Info("Relay direction started")
	defer d.logger.Info("Relay direction stopped")

	for ctx.Err() == nil {
		if !d.ensureOpen(ctx, d.source) || !d.ensureOpen(ctx, d.destination) {
			continue
		}
		d.setState(model.DirectionStateRelaying)

		n, err := d.source.ReadChunk(d.buffer, d.readTimeout)
		if err != nil {
			if protocol.IsTimeout(err) {
				continue
			}
			d.readFailures.Add(1)
			d.setState(model.DirectionStateDisconnected)
			d.logger.LogReadFailure(d.source.Name(), d.backoff, err)
			d.publish(model.EventEndpointDisconnected, model.SeverityWarning, map[string]interface{}{
				"endpoint": d.source.Name(),
				"error":    err.Error(),
			})
			d.sleep(ctx)
			continue
		}
		if n == 0 {
			continue
		}

		if err := d.destination.WriteChunk(d.buffer[:n]); err != nil {
			// The chunk is dropped; replaying it after a reconnect could duplicate data
			d.writeFailures.Add(1)
			d.setState(model.DirectionStateDisconnected)
			d.logger.LogWriteFailure(d.destination.Name(), n, d.backoff, err)
			d.publish(model.EventTransferFailed, model.SeverityError, map[string]interface{}{
				"endpoint":      d.destination.Name(),
				"dropped_bytes": n,
				"error":         err.Error(),
			})
			d.sleep(ctx)
			continue
		}

		d.pending.Add(uint64(n))
		d.total.Add(uint64(n))
		d.lastActivity.Store(time.Now().UnixNano())
	}
}

// ensureOpen opens ep if needed and reports whether it is usable. On failure
// it has already waited the backoff.
func (d *Direction) ensureOpen(ctx context.Context, ep protocol.Endpoint) bool {
	if ep.IsOpen() {
		return true
	}

	d.setState(model.DirectionStateConnecting)
	if err := ep.EnsureOpen(ctx); err != nil {
		d.setState(model.DirectionStateDisconnected)
		if ctx.Err() != nil {
			return false
		}
		d.logger.LogConnection(ep.Name(), false, err)
		d.sleep(ctx)
		return false
	}

	d.logger.LogConnection(ep.Name(), true, nil)
	d.publish(model.EventEndpointConnected, model.SeverityInfo, map[string]interface{}{
		"endpoint": ep.Name(),
		"kind":     string(ep.Kind()),
	})
	return true
}

func (d *Direction) sleep(ctx context.Context) {
	timer := time.NewTimer(d.backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (d *Direction) publish(eventType model.EventType, severity string, data map[string]interface{}) {
	if d.publisher == nil {
		return
	}
	data["direction"] = string(d.name)
	d.publisher.Publish(model.NewRelayEvent(eventType, string(d.name), severity, data))
}

// TakeCount returns the bytes forwarded since the previous call and resets the counter
func (d *Direction) TakeCount() uint64 {
	return d.pending.Swap(0)
}

// State returns the current loop state
func (d *Direction) State() model.DirectionState {
	return d.state.Load().(model.DirectionState)
}

func (d *Direction) setState(state model.DirectionState) {
	d.state.Store(state)
}

// Snapshot returns the direction's counters without resetting them
func (d *Direction) Snapshot() model.DirectionStats {
	stats := model.DirectionStats{
		Name:          d.name,
		Source:        d.source.Name(),
		Destination:   d.destination.Name(),
		State:         d.State(),
		PendingBytes:  d.pending.Load(),
		TotalBytes:    d.total.Load(),
		ReadFailures:  d.readFailures.Load(),
		WriteFailures: d.writeFailures.Load(),
	}
	if ns := d.lastActivity.Load(); ns != 0 {
		t := time.Unix(0, ns)
		stats.LastActivity = &t
	}
	return stats
}
