package slotreg

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// frequentlyUsedLimit caps the per-type breakdown published in a Stats
// snapshot.
const frequentlyUsedLimit = 10

// TypeCount is one entry of the per-type resolution breakdown.
type TypeCount struct {
	TypeName string
	Count    uint64
}

// Stats is an immutable diagnostics snapshot. Readers never see live
// counters: every snapshot is rebuilt as a whole and swapped atomically.
type Stats struct {
	GeneratedAt    time.Time
	GraphText      string
	FrequentlyUsed []TypeCount
	Registered     int
	Resolved       uint64
	Dependencies   int
}

type typeUsage struct {
	resolved uint64
	lastUsed time.Time
}

// usageOptimizer keeps frequency counters behind a coarse lock and
// publishes a debounced snapshot so diagnostics never block on them.
// Counters are cheap relative to construction, so the lock is acceptable;
// the instance-hit path only pays for it when optimization is on.
type usageOptimizer struct {
	usage     map[string]*typeUsage
	graph     *graphRecorder
	published atomic.Pointer[Stats]
	timer     *time.Timer
	window    time.Duration

	mu            sync.Mutex
	registered    int
	resolvedTotal uint64
	armed         bool
	closed        bool
}

func newUsageOptimizer(window time.Duration, graph *graphRecorder) *usageOptimizer {
	return &usageOptimizer{
		usage:  make(map[string]*typeUsage),
		graph:  graph,
		window: clampDebounce(window),
	}
}

func (o *usageOptimizer) countRegistration() {
	o.mu.Lock()
	o.registered++
	o.scheduleLocked()
	o.mu.Unlock()
}

func (o *usageOptimizer) countRelease() {
	o.mu.Lock()
	if o.registered > 0 {
		o.registered--
	}
	o.scheduleLocked()
	o.mu.Unlock()
}

func (o *usageOptimizer) countResolution(typeName string) {
	o.mu.Lock()

	u, ok := o.usage[typeName]
	if !ok {
		u = &typeUsage{}
		o.usage[typeName] = u
	}

	u.resolved++
	u.lastUsed = time.Now()
	o.resolvedTotal++
	o.scheduleLocked()

	o.mu.Unlock()
}

// scheduleLocked arms a single publication per debounce window. Mutations
// landing while the timer is armed coalesce into that publication.
func (o *usageOptimizer) scheduleLocked() {
	if o.armed || o.closed {
		return
	}

	o.armed = true
	if o.timer == nil {
		o.timer = time.AfterFunc(o.window, o.publish)
		return
	}

	o.timer.Reset(o.window)
}

func (o *usageOptimizer) publish() {
	o.mu.Lock()

	o.armed = false
	snapshot := o.buildLocked()

	o.mu.Unlock()

	o.published.Store(snapshot)
}

func (o *usageOptimizer) buildLocked() *Stats {
	frequent := make([]TypeCount, 0, len(o.usage))
	for name, u := range o.usage {
		frequent = append(frequent, TypeCount{TypeName: name, Count: u.resolved})
	}

	sort.Slice(frequent, func(i, j int) bool {
		if frequent[i].Count != frequent[j].Count {
			return frequent[i].Count > frequent[j].Count
		}

		return frequent[i].TypeName < frequent[j].TypeName
	})

	if len(frequent) > frequentlyUsedLimit {
		frequent = frequent[:frequentlyUsedLimit]
	}

	return &Stats{
		GeneratedAt:    time.Now(),
		Registered:     o.registered,
		Resolved:       o.resolvedTotal,
		Dependencies:   o.graph.edgeCount(),
		FrequentlyUsed: frequent,
		GraphText:      o.graph.text(),
	}
}

// snapshot returns the last published Stats. The very first call before any
// publication builds one synchronously so callers never see a nil snapshot.
func (o *usageOptimizer) snapshot() Stats {
	if s := o.published.Load(); s != nil {
		return *s
	}

	o.mu.Lock()
	s := o.buildLocked()
	o.mu.Unlock()

	o.published.CompareAndSwap(nil, s)

	return *s
}

func (o *usageOptimizer) close() {
	o.mu.Lock()
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
	}
	o.mu.Unlock()
}
