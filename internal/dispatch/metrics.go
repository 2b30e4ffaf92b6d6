package dispatch

import (
	"sync/atomic"

	"github.com/AgentShepherd/dataworks/internal/guard"
)

// Metrics tracks dispatcher outcomes.
type Metrics struct {
	Total     atomic.Int64 // authorization requests
	Allowed   atomic.Int64
	Denied    atomic.Int64
	Succeeded atomic.Int64 // handlers that returned nil
	Failed    atomic.Int64 // handler or validation failures

	byReason map[guard.Reason]*atomic.Int64
}

// NewMetrics returns zeroed metrics with a counter per deny reason.
func NewMetrics() *Metrics {
	m := &Metrics{byReason: make(map[guard.Reason]*atomic.Int64)}
	for _, r := range guard.AllReasons() {
		m.byReason[r] = new(atomic.Int64)
	}
	return m
}

func (m *Metrics) observe(d guard.Decision) {
	m.Total.Add(1)
	if d.Allowed {
		m.Allowed.Add(1)
		return
	}
	m.Denied.Add(1)
	if c, ok := m.byReason[d.Reason]; ok {
		c.Add(1)
	}
}

// DeniedFor returns the deny count for one reason.
func (m *Metrics) DeniedFor(r guard.Reason) int64 {
	if c, ok := m.byReason[r]; ok {
		return c.Load()
	}
	return 0
}

// GetStats returns a copy of current metrics.
func (m *Metrics) GetStats() map[string]int64 {
	out := map[string]int64{
		"total":     m.Total.Load(),
		"allowed":   m.Allowed.Load(),
		"denied":    m.Denied.Load(),
		"succeeded": m.Succeeded.Load(),
		"failed":    m.Failed.Load(),
	}
	for r, c := range m.byReason {
		out["denied_"+string(r)] = c.Load()
	}
	return out
}

// DenyRate returns the percentage of requests denied.
func (m *Metrics) DenyRate() float64 {
	total := m.Total.Load()
	if total == 0 {
		return 0
	}
	return float64(m.Denied.Load()) / float64(total) * 100
}
