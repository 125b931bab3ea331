// internal/event/bus.go
package event

import (
	"sync"

	"go.uber.org/zap"

	"serial2pipe/internal/model"
)

// Bus fans relay events out to subscribers. Publishing never blocks: when the
// queue or a subscriber is full the event is dropped for that receiver.
type Bus struct {
	subscribers map[uint64]chan model.RelayEvent
	nextID      uint64
	events      chan model.RelayEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
	done        chan struct{}
	stopOnce    sync.Once
}

// NewBus creates a new event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[uint64]chan model.RelayEvent),
		events:      make(chan model.RelayEvent, 1000),
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start distributes events until Stop is called
func (b *Bus) Start() {
	for {
		select {
		case e := <-b.events:
			b.distribute(e)
		case <-b.done:
			return
		}
	}
}

// Stop stops distribution. Safe to call more than once.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

// Publish queues an event for distribution
func (b *Bus) Publish(e model.RelayEvent) {
	select {
	case b.events <- e:
	default:
		if b.logger != nil {
			b.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", string(e.EventType)),
			)
		}
	}
}

// Subscribe returns a channel receiving every event and a function that ends
// the subscription and closes the channel
func (b *Bus) Subscribe(buffer int) (<-chan model.RelayEvent, func()) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan model.RelayEvent, buffer)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mutex.Lock()
			delete(b.subscribers, id)
			close(ch)
			b.mutex.Unlock()
		})
	}
}

func (b *Bus) distribute(e model.RelayEvent) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// Subscriber is slow, skip
		}
	}
}
