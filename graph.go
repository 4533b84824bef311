package slotreg

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

type resolutionFrameKey struct{}

// resolutionFrame is one entry of the resolution-context stack. The stack
// travels inside context.Context because construction may hop goroutines;
// pinning it to the calling goroutine would drop edges on every hop.
type resolutionFrame struct {
	parent   *resolutionFrame
	typeName string
}

func pushResolution(ctx context.Context, typeName string) context.Context {
	parent, _ := ctx.Value(resolutionFrameKey{}).(*resolutionFrame)

	return context.WithValue(ctx, resolutionFrameKey{}, &resolutionFrame{
		parent:   parent,
		typeName: typeName,
	})
}

func currentResolution(ctx context.Context) (string, bool) {
	frame, ok := ctx.Value(resolutionFrameKey{}).(*resolutionFrame)
	if !ok {
		return "", false
	}

	return frame.typeName, true
}

// DependencyEdge is one recorded caller -> resolved-type edge.
type DependencyEdge struct {
	From string
	To   string
}

// graphRecorder keeps the directed graph of observed resolutions.
// Append-only during resolution bursts; pruned only by explicit reset.
// Edge bookkeeping sits behind a coarse lock: it is not on the
// instance-hit hot path and only runs when recording is enabled.
type graphRecorder struct {
	edges map[string]map[string]struct{}
	order []DependencyEdge
	mu    sync.Mutex
}

func newGraphRecorder() *graphRecorder {
	return &graphRecorder{edges: make(map[string]map[string]struct{})}
}

func (g *graphRecorder) record(from, to string) {
	if from == to {
		// Self-edges come from a factory resolving its own type through a
		// replaced binding; they are not useful diagnostics.
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	tos, ok := g.edges[from]
	if !ok {
		tos = make(map[string]struct{})
		g.edges[from] = tos
	}

	if _, ok := tos[to]; ok {
		return
	}

	tos[to] = struct{}{}
	g.order = append(g.order, DependencyEdge{From: from, To: to})
}

func (g *graphRecorder) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges = make(map[string]map[string]struct{})
	g.order = nil
}

func (g *graphRecorder) edgeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.order)
}

// adjacency returns a read-only copy with deterministically ordered
// neighbor lists. Traversals never hold the recorder lock.
func (g *graphRecorder) adjacency() map[string][]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	adj := make(map[string][]string, len(g.edges))
	for from, tos := range g.edges {
		neighbors := make([]string, 0, len(tos))
		for to := range tos {
			neighbors = append(neighbors, to)
		}

		sort.Strings(neighbors)
		adj[from] = neighbors
	}

	return adj
}

// text renders the recorded edges as one "A -> B" line per edge in
// insertion order.
func (g *graphRecorder) text() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.order) == 0 {
		return ""
	}

	var b strings.Builder
	for _, edge := range g.order {
		fmt.Fprintf(&b, "%s -> %s\n", edge.From, edge.To)
	}

	return b.String()
}

type dfsColor uint8

const (
	colorWhite dfsColor = iota
	colorGray
	colorBlack
)

type dfsFrame struct {
	node string
	next int
}

// detectCycles runs an iterative DFS over adj with a recursion-stack set.
// A back-edge into the gray set yields the cycle slice of the current path.
// Edge insertion order is timing-dependent, so cycles are normalized to
// start at their smallest node and deduplicated.
func detectCycles(adj map[string][]string) [][]string {
	roots := make([]string, 0, len(adj))
	for node := range adj {
		roots = append(roots, node)
	}
	sort.Strings(roots)

	color := make(map[string]dfsColor, len(adj))
	seen := make(map[string]struct{})

	var cycles [][]string

	for _, root := range roots {
		if color[root] != colorWhite {
			continue
		}

		stack := []dfsFrame{{node: root}}
		path := []string{root}
		color[root] = colorGray

		for len(stack) > 0 {
			frame := &stack[len(stack)-1]
			neighbors := adj[frame.node]

			if frame.next >= len(neighbors) {
				color[frame.node] = colorBlack
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]

				continue
			}

			node := neighbors[frame.next]
			frame.next++

			switch color[node] {
			case colorWhite:
				color[node] = colorGray
				stack = append(stack, dfsFrame{node: node})
				path = append(path, node)
			case colorGray:
				start := slices.Index(path, node)
				cycle := normalizeCycle(slices.Clone(path[start:]))

				key := strings.Join(cycle, " -> ")
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
			}
		}
	}

	return cycles
}

// normalizeCycle rotates the cycle so its smallest node comes first,
// preserving edge order.
func normalizeCycle(cycle []string) []string {
	if len(cycle) < 2 {
		return cycle
	}

	smallest := 0
	for i, node := range cycle {
		if node < cycle[smallest] {
			smallest = i
		}
	}

	return append(cycle[smallest:], cycle[:smallest]...)
}
