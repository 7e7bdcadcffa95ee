package distributor

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Connection is one long-lived push channel to a client
type Connection interface {
	ID() string
	Send(payload []byte) error
}

// Scope restricts the event ids a connection may receive
type Scope interface {
	Contains(eventID string) bool
}

// ScopeFunc adapts a function to the Scope interface
type ScopeFunc func(eventID string) bool

// Contains calls f(eventID)
func (f ScopeFunc) Contains(eventID string) bool {
	return f(eventID)
}

// Subscription describes a connection being opened
type Subscription struct {
	Conn Connection

	// Scope is nil for connections that receive every event
	Scope Scope

	// RateLimit in events per second; zero falls back to Config.RateLimit
	RateLimit float64
}

// Encoder renders an event into the payload handed to Connection.Send
type Encoder func(e event.Event) ([]byte, error)

// JSONEncoder is the default Encoder
func JSONEncoder(e event.Event) ([]byte, error) {
	return json.Marshal(e)
}

// Config configures a Distributor
type Config struct {
	// ApplicationID is stamped into every delivered event
	ApplicationID string

	// DefaultLifetime applies to cached events that carry no lifetime
	DefaultLifetime time.Duration

	// RateLimit is the default per-connection limit in events per second.
	// Zero disables rate limiting.
	RateLimit float64

	Encoder Encoder
}

// connState is the delivery bookkeeping of one open connection
type connState struct {
	sub     Subscription
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu          sync.Mutex
	lastErrorAt map[string]time.Time
}

func (c *connState) id() string {
	return c.sub.Conn.ID()
}

// Distributor caches the latest event per id and fans events out to open
// connections through a single delivery worker
type Distributor struct {
	cfg    Config
	logger zerolog.Logger

	cacheMu sync.Mutex
	cache   map[string]event.Event

	connMu sync.RWMutex
	conns  map[string]*connState

	queueMu sync.Mutex
	queue   []task
	notify  chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a distributor. Call Start to begin delivering.
func New(cfg Config) *Distributor {
	if cfg.DefaultLifetime <= 0 {
		cfg.DefaultLifetime = event.DefaultLifetime
	}
	if cfg.Encoder == nil {
		cfg.Encoder = JSONEncoder
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Distributor{
		cfg:    cfg,
		logger: log.WithComponent("distributor"),
		cache:  make(map[string]event.Event),
		conns:  make(map[string]*connState),
		notify: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Publish caches e according to the cache policy and queues it for every open
// connection that should receive it
func (d *Distributor) Publish(e event.Event) {
	metrics.EventsPublishedTotal.WithLabelValues(string(e.Kind)).Inc()

	d.cacheMu.Lock()
	conns := d.connections()
	if e.Cacheable() {
		if e.Lifetime <= 0 {
			e.Lifetime = d.cfg.DefaultLifetime
		}
		d.updateCacheLocked(e)
	}
	tasks := make([]task, 0, len(conns))
	for _, cs := range conns {
		if d.shouldDeliverLocked(e, cs) {
			tasks = append(tasks, task{conn: cs, ev: e})
		}
	}
	d.enqueue(tasks...)
	d.cacheMu.Unlock()
}

// connections returns the open connections ordered by id. cacheMu must be
// held: registration, replay and publish fan-out all happen under it, so a
// new connection never ends with an older value than the cache.
func (d *Distributor) connections() []*connState {
	d.connMu.RLock()
	conns := make([]*connState, 0, len(d.conns))
	for _, cs := range d.conns {
		conns = append(conns, cs)
	}
	d.connMu.RUnlock()
	sort.Slice(conns, func(i, j int) bool { return conns[i].id() < conns[j].id() })
	return conns
}

// updateCacheLocked stores e unless it is an error that would evict a still
// valid data event
func (d *Distributor) updateCacheLocked(e event.Event) {
	if !e.IsError() {
		d.cache[e.ID] = e
		return
	}

	cached, ok := d.cache[e.ID]
	if !ok || cached.IsError() || isStale(cached, time.Now()) {
		d.cache[e.ID] = e
	}
}

// shouldDeliverLocked is the per-connection delivery filter. cacheMu must be held.
func (d *Distributor) shouldDeliverLocked(e event.Event, cs *connState) bool {
	if !e.Cacheable() {
		return true
	}
	if cs.sub.Scope != nil && !cs.sub.Scope.Contains(e.ID) {
		return false
	}
	if e.IsError() {
		cached, ok := d.cache[e.ID]
		return !ok || cached.IsError()
	}
	return true
}

// isStale reports whether a cached entry may be purged: expired data events.
// Errors stay until replaced.
func isStale(e event.Event, now time.Time) bool {
	return !e.IsError() && !e.IsValid(now)
}

// ConnectionOpened registers a connection and queues the cached events it
// should receive
func (d *Distributor) ConnectionOpened(sub Subscription) {
	cs := &connState{
		sub:         sub,
		logger:      log.WithConnectionID(sub.Conn.ID()),
		lastErrorAt: make(map[string]time.Time),
	}
	limit := sub.RateLimit
	if limit <= 0 {
		limit = d.cfg.RateLimit
	}
	if limit > 0 {
		cs.limiter = rate.NewLimiter(rate.Limit(limit), 1)
	}

	cs.logger.Info().
		Bool("scoped", sub.Scope != nil).
		Float64("rate_limit", limit).
		Msg("Connection opened")

	now := time.Now()
	d.cacheMu.Lock()
	d.connMu.Lock()
	d.conns[cs.id()] = cs
	d.connMu.Unlock()

	ids := make([]string, 0, len(d.cache))
	for id, cached := range d.cache {
		if isStale(cached, now) {
			d.logger.Debug().Str("event_id", id).Dur("lifetime", cached.Lifetime).Msg("Deleting expired cached event")
			delete(d.cache, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tasks := make([]task, 0, len(ids))
	for _, id := range ids {
		if cached := d.cache[id]; d.shouldDeliverLocked(cached, cs) {
			tasks = append(tasks, task{conn: cs, ev: cached})
		}
	}
	d.enqueue(tasks...)
	d.cacheMu.Unlock()
}

// ConnectionClosed drops the connection's bookkeeping and queued tasks
func (d *Distributor) ConnectionClosed(connID string) {
	d.connMu.Lock()
	_, ok := d.conns[connID]
	delete(d.conns, connID)
	d.connMu.Unlock()
	if !ok {
		return
	}

	d.queueMu.Lock()
	kept := d.queue[:0]
	for _, t := range d.queue {
		if t.conn.id() != connID {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(d.queue); i++ {
		d.queue[i] = task{}
	}
	d.queue = kept
	d.queueMu.Unlock()

	logger := log.WithConnectionID(connID)
	logger.Info().Msg("Connection closed")
}

// RemoveByID drops the cached event for id
func (d *Distributor) RemoveByID(id string) {
	d.cacheMu.Lock()
	_, ok := d.cache[id]
	delete(d.cache, id)
	d.cacheMu.Unlock()

	if ok {
		d.logger.Warn().Str("event_id", id).Msg("Deleted cached event")
	}
}

// DropStale drops the cached event for id if it is an expired data event
func (d *Distributor) DropStale(id string) {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()

	if cached, ok := d.cache[id]; ok && isStale(cached, time.Now()) {
		delete(d.cache, id)
	}
}

// Cached returns the cached event for id
func (d *Distributor) Cached(id string) (event.Event, bool) {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	e, ok := d.cache[id]
	return e, ok
}

// CachedEvents returns a snapshot of the cache ordered by id
func (d *Distributor) CachedEvents() []event.Event {
	d.cacheMu.Lock()
	out := make([]event.Event, 0, len(d.cache))
	for _, e := range d.cache {
		out = append(out, e)
	}
	d.cacheMu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CacheSize returns the number of cached events
func (d *Distributor) CacheSize() int {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	return len(d.cache)
}

// Connections returns the ids of the open connections
func (d *Distributor) Connections() []string {
	d.connMu.RLock()
	ids := make([]string, 0, len(d.conns))
	for id := range d.conns {
		ids = append(ids, id)
	}
	d.connMu.RUnlock()

	sort.Strings(ids)
	return ids
}

// ConnectionCount returns the number of open connections
func (d *Distributor) ConnectionCount() int {
	d.connMu.RLock()
	defer d.connMu.RUnlock()
	return len(d.conns)
}

func (d *Distributor) isOpen(cs *connState) bool {
	d.connMu.RLock()
	defer d.connMu.RUnlock()
	return d.conns[cs.id()] == cs
}
