package metrics

import (
	"time"

	"github.com/cuemby/rocker/pkg/store"
)

// Collector periodically samples the store to keep gauge metrics (ones
// that can't be updated incrementally at the point of an event) fresh.
type Collector struct {
	store  *store.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over s.
func NewCollector(s *store.Store) *Collector {
	return &Collector{
		store:  s,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second tick, collecting once
// immediately first.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
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

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	containers, err := c.store.ListContainers()
	if err != nil {
		return
	}
	RunningContainers.Set(float64(len(containers)))
}
