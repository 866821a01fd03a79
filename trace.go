package atoms

import (
	"encoding/json"
)

// Trace captures the dependency neighbourhood of one key: the keys its latest
// computation read and the keys whose latest computation read it.
type Trace struct {
	Path         string       `json:"path"`
	Value        any          `json:"value,omitempty"`
	Found        bool         `json:"found"`
	Dependencies []Provenance `json:"dependencies,omitempty"`
	Dependents   []Provenance `json:"dependents,omitempty"`
}

// Provenance details one neighbour of a traced key.
type Provenance struct {
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

func newTrace(key Key, graph *Graph, storage *MemoryStorage) Trace {
	root := provenanceOf(key, storage)
	trace := Trace{
		Path:  root.Path,
		Value: root.Value,
		Found: root.Found,
	}
	for _, dependency := range graph.Dependencies(key) {
		trace.Dependencies = append(trace.Dependencies, provenanceOf(dependency, storage))
	}
	for _, dependent := range graph.Dependents(key) {
		trace.Dependents = append(trace.Dependents, provenanceOf(dependent, storage))
	}
	return trace
}

func provenanceOf(key Key, storage *MemoryStorage) Provenance {
	value, found := storage.valueOf(key)
	return Provenance{Path: key.Path(), Value: value, Found: found}
}
