package metrics

import (
	"context"
	"sync"
	"time"

	"media-converter/internal/logging"
)

// Stats is a snapshot of the media library and converter state.
type Stats struct {
	ItemsByMime   map[string]int
	CounterValue  int
	AuditLogBytes int64
}

// StatsProvider supplies snapshots for the collector.
type StatsProvider interface {
	LibraryStats(ctx context.Context) (Stats, error)
}

// Collector periodically refreshes the library gauges.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	seenMimes map[string]struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider:  provider,
		interval:  interval,
		stopChan:  make(chan struct{}),
		seenMimes: make(map[string]struct{}),
	}
}

// Start begins the collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	stats, err := c.provider.LibraryStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	c.mu.Lock()
	// Types that disappeared from the library drop to zero instead of
	// keeping their last value.
	for mime := range c.seenMimes {
		if _, ok := stats.ItemsByMime[mime]; !ok {
			LibraryItemsTotal.WithLabelValues(mime).Set(0)
		}
	}
	total := 0
	for mime, n := range stats.ItemsByMime {
		c.seenMimes[mime] = struct{}{}
		LibraryItemsTotal.WithLabelValues(mime).Set(float64(n))
		total += n
	}
	c.mu.Unlock()

	CounterValue.Set(float64(stats.CounterValue))
	AuditLogSizeBytes.Set(float64(stats.AuditLogBytes))

	logging.Debug("Metrics collected: items=%d, counter=%d, audit_log=%d bytes",
		total, stats.CounterValue, stats.AuditLogBytes)
}
