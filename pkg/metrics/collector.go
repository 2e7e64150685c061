package metrics

import (
	"sync"
	"time"

	"github.com/cuemby/minicluster/pkg/types"
)

// DefaultCollectInterval is how often the collector refreshes ledger gauges
const DefaultCollectInterval = 15 * time.Second

// LedgerCounter is the slice of the job ledger the collector reads
type LedgerCounter interface {
	CountByStatus() (map[types.JobStatus]int, error)
}

// Collector periodically copies ledger totals into the LedgerJobs gauge
type Collector struct {
	ledger   LedgerCounter
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a collector for ledger
func NewCollector(ledger LedgerCounter, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{
		ledger:   ledger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting in the background
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		defer ticker.Stop()
		c.Collect()
		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop stops the collector; safe to call more than once
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Collect refreshes the gauges once. Ledger read errors leave the previous
// values in place.
func (c *Collector) Collect() {
	counts, err := c.ledger.CountByStatus()
	if err != nil {
		return
	}

	for _, status := range []types.JobStatus{
		types.JobStatusRunning,
		types.JobStatusSucceeded,
		types.JobStatusFailed,
		types.JobStatusIgnored,
	} {
		LedgerJobs.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
