package atoms

import "reflect"

// slot is the single container behind one key. All fields are guarded by the
// owning storage's mutex.
type slot struct {
	key       Key
	valueType reflect.Type
	value     any
	ready     bool
	// pending is non-nil while a default value is being produced; it is
	// closed when production finishes either way.
	pending chan struct{}
	// stale is set when a dependency is written while the slot is pending;
	// the producer then computes again before publishing.
	stale bool
	// derived holds the request that materialized a derived key so the
	// computation can be re-run.
	derived *Request

	observers  []observerEntry
	observerID uint64
}

type observerEntry struct {
	id       uint64
	observer Observer
}

func (s *slot) addObserver(observer Observer) uint64 {
	s.observerID++
	s.observers = append(s.observers, observerEntry{id: s.observerID, observer: observer})
	return s.observerID
}

func (s *slot) removeObserver(id uint64) {
	for i, entry := range s.observers {
		if entry.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *slot) observerSnapshot() []Observer {
	if len(s.observers) == 0 {
		return nil
	}
	out := make([]Observer, len(s.observers))
	for i, entry := range s.observers {
		out[i] = entry.observer
	}
	return out
}

// assign stores value, fixing the slot type on first materialization.
func (s *slot) assign(value any) error {
	expected := s.valueType
	if expected == nil {
		expected = s.key.ValueType()
	}
	if err := checkType(s.key, expected, value); err != nil {
		return err
	}
	if s.valueType == nil {
		if expected != nil {
			s.valueType = expected
		} else if value != nil {
			s.valueType = reflect.TypeOf(value)
		}
	}
	s.value = value
	s.ready = true
	return nil
}
