package metrics

import "time"

// Source is implemented by the engine composition root. Collector polls it
// periodically so gauge metrics (counts, not rates) stay current without
// every mutating call needing to know about prometheus.
type Source interface {
	NodeCount() (int, error)
	EdgeCount() (int, error)
	SnapshotCount() (int, error)
	ActiveTransactionCount() (int, error)
	VectorSegmentCounts() (open int, sealed int, err error)
}

// Collector periodically polls a Source and updates the corresponding
// gauge metrics.
type Collector struct {
	source Source
	stopCh chan struct{}
}

func NewCollector(source Source) *Collector {
	return &Collector{source: source, stopCh: make(chan struct{})}
}

// Start begins polling on a 15s ticker until Stop is called.
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

func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if n, err := c.source.NodeCount(); err == nil {
		NodesTotal.Set(float64(n))
	}
	if n, err := c.source.EdgeCount(); err == nil {
		EdgesTotal.Set(float64(n))
	}
	if n, err := c.source.SnapshotCount(); err == nil {
		SnapshotsTotal.Set(float64(n))
	}
	if n, err := c.source.ActiveTransactionCount(); err == nil {
		ActiveTransactions.Set(float64(n))
	}
	if open, sealed, err := c.source.VectorSegmentCounts(); err == nil {
		VectorSegmentsTotal.WithLabelValues("open").Set(float64(open))
		VectorSegmentsTotal.WithLabelValues("sealed").Set(float64(sealed))
	}
}
