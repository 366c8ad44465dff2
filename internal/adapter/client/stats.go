package client

import (
	"sync/atomic"
	"time"
)

type clientStats struct {
	requests     atomic.Int64
	successes    atomic.Int64
	retries      atomic.Int64
	failures     atomic.Int64
	bytesIn      atomic.Int64
	latencyTotal atomic.Int64
	latencyCount atomic.Int64
}

func (s *clientStats) recordLatency(d time.Duration) {
	s.successes.Add(1)
	s.latencyTotal.Add(int64(d))
	s.latencyCount.Add(1)
}

// Stats is a point in time view of client activity
type Stats struct {
	Requests       int64         `json:"requests"`
	Successes      int64         `json:"successes"`
	Retries        int64         `json:"retries"`
	Failures       int64         `json:"failures"`
	BytesReceived  int64         `json:"bytes_received"`
	AverageLatency time.Duration `json:"average_latency"`
}

func (c *Client) Stats() Stats {
	st := Stats{
		Requests:      c.stats.requests.Load(),
		Successes:     c.stats.successes.Load(),
		Retries:       c.stats.retries.Load(),
		Failures:      c.stats.failures.Load(),
		BytesReceived: c.stats.bytesIn.Load(),
	}
	if n := c.stats.latencyCount.Load(); n > 0 {
		st.AverageLatency = time.Duration(c.stats.latencyTotal.Load() / n)
	}
	return st
}
