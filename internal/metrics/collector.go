// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
	Outcomes  map[string]int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Name        string           `json:"name"`
	Count       int64            `json:"count"`
	Errors      int64            `json:"errors"`
	TotalTimeMs int64            `json:"totalTimeMs"`
	AvgTimeMs   float64          `json:"avgTimeMs"`
	MinTimeMs   int64            `json:"minTimeMs"`
	MaxTimeMs   int64            `json:"maxTimeMs"`
	Outcomes    map[string]int64 `json:"outcomes,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64             `json:"uptimeSeconds"`
	Stages        []OperationSnapshot `json:"stages"`
	Providers     []OperationSnapshot `json:"providers"`
	Store         *OperationSnapshot  `json:"store,omitempty"`
}

// Operation kinds for the collector.
const (
	kindStage    = "stage"
	kindProvider = "provider"

	// OpStore times knowledge store persistence.
	OpStore = "store"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]map[string]*OperationMetrics // kind -> name -> metrics
	prom      *Prometheus
}

// NewCollector creates a new metrics collector. prom may be nil.
func NewCollector(prom *Prometheus) *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]map[string]*OperationMetrics),
		prom:      prom,
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(kind, name string) *OperationMetrics {
	byName, ok := c.ops[kind]
	if !ok {
		byName = make(map[string]*OperationMetrics)
		c.ops[kind] = byName
	}
	m, ok := byName[name]
	if !ok {
		m = &OperationMetrics{
			MinTime:  time.Duration(math.MaxInt64),
			Outcomes: make(map[string]int64),
		}
		byName[name] = m
	}
	return m
}

func (m *OperationMetrics) observe(d time.Duration) {
	m.Count++
	m.TotalTime += d
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// RecordTiming records timing for a store operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(op, op).observe(duration)
}

// RecordStage records one finished orchestrator stage.
func (c *Collector) RecordStage(stage, outcome string, d time.Duration) {
	c.mu.Lock()
	m := c.getOrCreate(kindStage, stage)
	m.observe(d)
	m.Outcomes[outcome]++
	if outcome == "failed" {
		m.Errors++
	}
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.stageTotal.WithLabelValues(stage, outcome).Inc()
		c.prom.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// RecordProvider records one guarded provider call, retries included.
func (c *Collector) RecordProvider(name string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	c.mu.Lock()
	m := c.getOrCreate(kindProvider, name)
	m.observe(d)
	m.Outcomes[status]++
	if err != nil {
		m.Errors++
	}
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.providerTotal.WithLabelValues(name, status).Inc()
		c.prom.providerDuration.WithLabelValues(name).Observe(d.Seconds())
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(name string, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	outcomes := make(map[string]int64, len(m.Outcomes))
	for k, v := range m.Outcomes {
		outcomes[k] = v
	}
	return &OperationSnapshot{
		Name:        name,
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
		Outcomes:    outcomes,
	}
}

func (c *Collector) snapshotKind(kind string) []OperationSnapshot {
	out := []OperationSnapshot{}
	for name, m := range c.ops[kind] {
		if s := snapshotOp(name, m); s != nil {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Stages:        c.snapshotKind(kindStage),
		Providers:     c.snapshotKind(kindProvider),
		Store:         snapshotOp(OpStore, c.ops[OpStore][OpStore]),
	}
}

// RecordMirror exports the cloud mirror's reachability.
func (c *Collector) RecordMirror(up bool, failures int64) {
	if c.prom != nil {
		c.prom.SetMirror(up, failures)
	}
}

// RecordCooldown exports how long a provider stays in cooldown.
func (c *Collector) RecordCooldown(name string, remaining time.Duration) {
	if c.prom != nil {
		c.prom.SetCooldown(name, remaining.Seconds())
	}
}
