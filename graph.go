package atoms

import (
	"sort"
	"sync"
)

// Graph records which keys were read while computing which other keys. An
// edge from -> to means the value of from was derived from a read of to.
// The graph is kept acyclic: Add rejects edges that would close a cycle.
type Graph struct {
	mu  sync.RWMutex
	out map[Key]map[Key]struct{}
	in  map[Key]map[Key]struct{}
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		out: make(map[Key]map[Key]struct{}),
		in:  make(map[Key]map[Key]struct{}),
	}
}

// Add records from -> to. Adding an existing edge is a no-op.
func (g *Graph) Add(from, to Key) error {
	if from == to {
		return &CycleError{Path: []Key{from, to}}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.out[from][to]; ok {
		return nil
	}
	if path := g.pathLocked(to, from); path != nil {
		return &CycleError{Path: append([]Key{from}, path...)}
	}
	if g.out[from] == nil {
		g.out[from] = make(map[Key]struct{})
	}
	if g.in[to] == nil {
		g.in[to] = make(map[Key]struct{})
	}
	g.out[from][to] = struct{}{}
	g.in[to][from] = struct{}{}
	return nil
}

// Reset drops every outgoing edge of from. It is called before from is
// recomputed so the edge set reflects only the latest computation.
func (g *Graph) Reset(from Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for to := range g.out[from] {
		delete(g.in[to], from)
		if len(g.in[to]) == 0 {
			delete(g.in, to)
		}
	}
	delete(g.out, from)
}

// Dependencies returns the keys read by the last computation of key.
func (g *Graph) Dependencies(key Key) []Key {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.out[key])
}

// Dependents returns the keys whose last computation read key.
func (g *Graph) Dependents(key Key) []Key {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.in[key])
}

// HasEdge reports whether from -> to is recorded.
func (g *Graph) HasEdge(from, to Key) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.out[from][to]
	return ok
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0
	for _, targets := range g.out {
		total += len(targets)
	}
	return total
}

// TransitiveDependents returns every key that directly or indirectly depends
// on key, ordered so that each key appears after all of its dependencies in
// the returned set. Ties are broken by key order for determinism.
func (g *Graph) TransitiveDependents(key Key) []Key {
	g.mu.RLock()
	defer g.mu.RUnlock()

	affected := make(map[Key]struct{})
	queue := []Key{key}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for dependent := range g.in[current] {
			if _, seen := affected[dependent]; seen {
				continue
			}
			affected[dependent] = struct{}{}
			queue = append(queue, dependent)
		}
	}
	if len(affected) == 0 {
		return nil
	}

	pending := make(map[Key]int, len(affected))
	for node := range affected {
		count := 0
		for dependency := range g.out[node] {
			if _, ok := affected[dependency]; ok {
				count++
			}
		}
		pending[node] = count
	}

	var ready []Key
	for node, count := range pending {
		if count == 0 {
			ready = append(ready, node)
		}
	}
	sortKeys(ready)

	order := make([]Key, 0, len(affected))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)
		var unlocked []Key
		for dependent := range g.in[node] {
			if _, ok := affected[dependent]; !ok {
				continue
			}
			pending[dependent]--
			if pending[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		sortKeys(unlocked)
		ready = append(ready, unlocked...)
	}
	return order
}

// pathLocked returns a path start -> ... -> target following outgoing edges,
// or nil when target is unreachable.
func (g *Graph) pathLocked(start, target Key) []Key {
	parent := map[Key]Key{start: {}}
	queue := []Key{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == target {
			path := []Key{current}
			for current != start {
				current = parent[current]
				path = append(path, current)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for next := range g.out[current] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current
			queue = append(queue, next)
		}
	}
	return nil
}

func sortedKeys(set map[Key]struct{}) []Key {
	if len(set) == 0 {
		return nil
	}
	keys := make([]Key, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].id != keys[j].id {
			return keys[i].id < keys[j].id
		}
		if keys[i].discriminator != keys[j].discriminator {
			return keys[i].discriminator < keys[j].discriminator
		}
		return keys[i].Path() < keys[j].Path()
	})
}
