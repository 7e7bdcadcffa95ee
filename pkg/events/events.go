package events

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/lookout/pkg/log"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// EventType names a lifecycle notification. The part before the dot is the
// kind of subject: "source" or "dashboard".
type EventType string

const (
	EventSourceCreated   EventType = "source.created"
	EventSourceUpdated   EventType = "source.updated"
	EventSourceStarted   EventType = "source.started"
	EventSourceStopped   EventType = "source.stopped"
	EventSourceHalted    EventType = "source.halted"
	EventSourceRemoved   EventType = "source.removed"
	EventDashboardSaved  EventType = "dashboard.saved"
	EventDashboardReload EventType = "dashboard.reload"
)

// Subject returns the subject kind of t
func (t EventType) Subject() string {
	subject, _, _ := strings.Cut(string(t), ".")
	return subject
}

const (
	bufferSize           = 100
	subscriberBufferSize = 50
)

// Event is a lifecycle notification about a source or dashboard. These are
// internal notifications, not the status events delivered to subscribers.
type Event struct {
	ID        string
	Type      EventType
	SubjectID string
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

func (e *Event) String() string {
	if e.SubjectID == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s[%s]", e.Type, e.SubjectID)
}

// Subscriber receives the notifications it subscribed to
type Subscriber chan *Event

type subscription struct {
	types map[EventType]bool
}

func (s subscription) wants(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// Broker fans lifecycle notifications out to subscribers. Publishing never
// blocks the manager: a full broker buffer or subscriber channel drops the
// notification.
type Broker struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers map[Subscriber]subscription

	eventCh  chan *Event
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBroker creates a stopped broker
func NewBroker() *Broker {
	return &Broker{
		logger:      log.WithComponent("events"),
		subscribers: make(map[Subscriber]subscription),
		eventCh:     make(chan *Event, bufferSize),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the fan-out goroutine
func (b *Broker) Start() {
	go b.run()
}

// Stop stops fan-out. Later calls are ignored.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe registers a subscriber for the given types, or for every type
// when none are given
func (b *Broker) Subscribe(types ...EventType) Subscriber {
	sub := make(Subscriber, subscriberBufferSize)
	s := subscription{}
	if len(types) > 0 {
		s.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}

	b.mu.Lock()
	b.subscribers[sub] = s
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes it
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish stamps a ULID and timestamp on e when missing and queues it
func (b *Broker) Publish(e *Event) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- e:
	case <-b.stopCh:
	default:
		b.logger.Warn().
			Str("type", string(e.Type)).
			Str("subject", e.SubjectID).
			Msg("Lifecycle buffer full, dropping notification")
	}
}

func (b *Broker) run() {
	for {
		select {
		case e := <-b.eventCh:
			b.fanOut(e)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) fanOut(e *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, s := range b.subscribers {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case sub <- e:
		default:
			b.logger.Debug().Str("type", string(e.Type)).Msg("Subscriber full, notification skipped")
		}
	}
}

// SubscriberCount returns the number of subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
