package metrics

import (
	"time"
)

// SourceReporter reports how many sources are in each lifecycle state
type SourceReporter interface {
	SourceStates() map[string]int
}

// DistributionReporter reports distributor gauges
type DistributionReporter interface {
	CacheSize() int
	QueueLen() int
	ConnectionCount() int
}

// Collector samples gauges from the manager and the distributor
type Collector struct {
	sources      SourceReporter
	distribution DistributionReporter
	interval     time.Duration
	stopCh       chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(sources SourceReporter, distribution DistributionReporter) *Collector {
	return &Collector{
		sources:      sources,
		distribution: distribution,
		interval:     15 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectSourceMetrics()
	c.collectDistributionMetrics()
}

func (c *Collector) collectSourceMetrics() {
	if c.sources == nil {
		return
	}
	// Reset so states that no longer occur drop to zero
	SourcesTotal.Reset()
	for state, count := range c.sources.SourceStates() {
		SourcesTotal.WithLabelValues(state).Set(float64(count))
	}
}

func (c *Collector) collectDistributionMetrics() {
	if c.distribution == nil {
		return
	}
	CachedEvents.Set(float64(c.distribution.CacheSize()))
	DeliveryQueueDepth.Set(float64(c.distribution.QueueLen()))
	ConnectionsOpen.Set(float64(c.distribution.ConnectionCount()))
}
