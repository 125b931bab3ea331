// internal/relay/coordinator.go
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serial2pipe/internal/model"
	"serial2pipe/internal/protocol"
)

// Options holds the relay timing and sizing. Zero values take the defaults.
type Options struct {
	ReadTimeout     time.Duration
	Backoff         time.Duration
	StatsInterval   time.Duration
	ShutdownTimeout time.Duration
	BufferSize      int
}

// Default relay timing
const (
	DefaultBackoff         = 5 * time.Second
	DefaultStatsInterval   = time.Hour
	DefaultShutdownTimeout = 5 * time.Second
)

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = protocol.DefaultReadTimeout
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = DefaultStatsInterval
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = protocol.DefaultBufferSize
	}
	return o
}

// ErrAlreadyStarted is returned by a second Start
var ErrAlreadyStarted = errors.New("relay already started")

// Coordinator owns both relay directions. It acquires the endpoints at start,
// reports statistics periodically and drives shutdown.
type Coordinator struct {
	device       protocol.Endpoint
	pipe         protocol.Endpoint
	deviceToPipe *Direction
	pipeToDevice *Direction
	options      Options
	logger       *zap.Logger
	publisher    Publisher
	instanceID   string

	mutex     sync.Mutex
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	reportMutex  sync.RWMutex
	lastReport   *model.StatsReport
	lastReportAt time.Time
}

// NewCoordinator creates a coordinator relaying between device and pipe.
// publisher may be nil.
func NewCoordinator(device, pipe protocol.Endpoint, options Options, logger *zap.Logger, publisher Publisher) *Coordinator {
	options = options.withDefaults()

	return &Coordinator{
		device:       device,
		pipe:         pipe,
		deviceToPipe: NewDirection(model.DirectionDeviceToPipe, device, pipe, options, logger, publisher),
		pipeToDevice: NewDirection(model.DirectionPipeToDevice, pipe, device, options, logger, publisher),
		options:      options,
		logger:       logger.With(zap.String("component", "coordinator")),
		publisher:    publisher,
		instanceID:   uuid.New().String(),
		lastReportAt: time.Now(),
	}
}

// InstanceID identifies this relay instance in logs and events
func (c *Coordinator) InstanceID() string {
	return c.instanceID
}

// Start acquires both endpoints and starts the relay. A failure here is a
// configuration problem and is returned rather than retried.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	if err := protocol.Prepare(ctx, c.device); err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", c.device.Name(), err)
	}
	if err := protocol.Prepare(ctx, c.pipe); err != nil {
		if closeErr := c.device.Close(); closeErr != nil {
			c.logger.Warn("Failed to close serial port after failed start", zap.Error(closeErr))
		}
		return fmt.Errorf("failed to acquire pipe %s: %w", c.pipe.Name(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.started = true
	c.startedAt = time.Now()

	c.reportMutex.Lock()
	c.lastReportAt = c.startedAt
	c.reportMutex.Unlock()

	c.wg.Add(3)
	go func() {
		defer c.wg.Done()
		c.deviceToPipe.Run(runCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.pipeToDevice.Run(runCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.statsLoop(runCtx)
	}()

	c.logger.Info("Relay started",
		zap.String("instance_id", c.instanceID),
		zap.String("serial_port", c.device.Name()),
		zap.String("named_pipe", c.pipe.Name()),
		zap.Duration("read_timeout", c.options.ReadTimeout),
		zap.Duration("backoff", c.options.Backoff),
		zap.Duration("stats_interval", c.options.StatsInterval),
	)
	c.publish(model.EventRelayStarted, model.SeverityInfo, map[string]interface{}{
		"serial_port": c.device.Name(),
		"named_pipe":  c.pipe.Name(),
	})

	return nil
}

// Run starts the relay and blocks until ctx is cancelled, then stops it
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Stop()
	return nil
}

func (c *Coordinator) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(c.options.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ReportStats()
		}
	}
}

// ReportStats emits both directions' byte counts since the previous report
// and resets them
func (c *Coordinator) ReportStats() model.StatsReport {
	now := time.Now()
	report := model.StatsReport{
		DeviceToPipe: c.deviceToPipe.TakeCount(),
		PipeToDevice: c.pipeToDevice.TakeCount(),
		ReportedAt:   now,
	}

	c.reportMutex.Lock()
	report.Period = now.Sub(c.lastReportAt)
	c.lastReportAt = now
	c.lastReport = &report
	c.reportMutex.Unlock()

	c.logger.Info("Relay statistics",
		zap.String("serial_port", c.device.Name()),
		zap.String("named_pipe", c.pipe.Name()),
		zap.Uint64("device_to_pipe_bytes", report.DeviceToPipe),
		zap.Uint64("pipe_to_device_bytes", report.PipeToDevice),
		zap.Duration("period", report.Period),
	)
	c.publish(model.EventStatsReport, model.SeverityInfo, map[string]interface{}{
		"device_to_pipe_bytes": report.DeviceToPipe,
		"pipe_to_device_bytes": report.PipeToDevice,
		"period":               report.Period.String(),
	})

	return report
}

// Status returns a snapshot of the relay. It does not reset any counter.
func (c *Coordinator) Status() model.RelayStatus {
	c.mutex.Lock()
	startedAt := c.startedAt
	c.mutex.Unlock()

	status := model.RelayStatus{
		InstanceID: c.instanceID,
		StartedAt:  startedAt,
		Directions: []model.DirectionStats{
			c.deviceToPipe.Snapshot(),
			c.pipeToDevice.Snapshot(),
		},
	}

	c.reportMutex.RLock()
	if c.lastReport != nil {
		report := *c.lastReport
		status.LastReport = &report
	}
	c.reportMutex.RUnlock()

	return status
}

// Ready reports whether both directions are relaying
func (c *Coordinator) Ready() bool {
	return c.deviceToPipe.State() == model.DirectionStateRelaying &&
		c.pipeToDevice.State() == model.DirectionStateRelaying
}

// Stop cancels both directions, waits up to the shutdown timeout for them to
// return and closes both endpoints. It is safe to call without a successful
// Start and more than once.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.mutex.Lock()
		cancel := c.cancel
		started := c.started
		c.mutex.Unlock()

		if cancel != nil {
			cancel()
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(c.options.ShutdownTimeout):
			c.logger.Warn("Relay directions did not stop in time",
				zap.Duration("shutdown_timeout", c.options.ShutdownTimeout),
			)
		}

		if err := c.device.Close(); err != nil {
			c.logger.Warn("Failed to close serial port", zap.Error(err))
		}
		if err := c.pipe.Close(); err != nil {
			c.logger.Warn("Failed to close pipe", zap.Error(err))
		}

		if started {
			// Flush the bytes forwarded since the last periodic report
			c.ReportStats()
			c.logger.Info("Relay stopped", zap.String("instance_id", c.instanceID))
			c.publish(model.EventRelayStopped, model.SeverityInfo, nil)
		}
	})
}

func (c *Coordinator) publish(eventType model.EventType, severity string, data map[string]interface{}) {
	if c.publisher == nil {
		return
	}
	e := model.NewRelayEvent(eventType, "coordinator", severity, data)
	if e.Data == nil {
		e.Data = map[string]interface{}{}
	}
	e.Data["instance_id"] = c.instanceID
	c.publisher.Publish(e)
}
