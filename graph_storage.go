package atoms

// DependencyGraphStorage is a MemoryStorage that records which keys each
// derived computation read. Writes recompute the materialized derived
// dependents of the written key, in dependency order, before returning.
type DependencyGraphStorage struct {
	*MemoryStorage
}

var _ Storage = (*DependencyGraphStorage)(nil)

// NewDependencyGraphStorage constructs a dependency tracking backend.
func NewDependencyGraphStorage(opts ...Option) *DependencyGraphStorage {
	return &DependencyGraphStorage{
		MemoryStorage: newMemoryStorage(applyOptions(opts), NewGraph()),
	}
}

// Graph exposes the recorded dependency edges.
func (s *DependencyGraphStorage) Graph() *Graph {
	return s.graph
}

// Dependents returns the keys whose latest computation read key.
func (s *DependencyGraphStorage) Dependents(key Key) []Key {
	return s.graph.Dependents(key)
}

// Dependencies returns the keys read by the latest computation of key.
func (s *DependencyGraphStorage) Dependencies(key Key) []Key {
	return s.graph.Dependencies(key)
}

// Trace describes the dependency neighbourhood of key.
func (s *DependencyGraphStorage) Trace(key Key) Trace {
	return newTrace(key, s.graph, s.MemoryStorage)
}
