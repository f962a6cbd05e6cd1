package onboard

import "sync"

// StateStore records the last angle written to each motor. One lock covers every motor and
// is only ever held for a single map access, never across a sleep.
type StateStore struct {
	lock   sync.Mutex
	angles map[string]float64
}

func NewStateStore(ids []string, initial float64) *StateStore {
	s := &StateStore{angles: make(map[string]float64, len(ids))}
	for _, id := range ids {
		s.angles[id] = initial
	}
	return s
}

func (s *StateStore) Get(id string) float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.angles[id]
}

func (s *StateStore) Set(id string, angle float64) {
	s.lock.Lock()
	s.angles[id] = angle
	s.lock.Unlock()
}

func (s *StateStore) SetAll(angle float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for id := range s.angles {
		s.angles[id] = angle
	}
}

// Snapshot copies every motor's angle under the lock.
func (s *StateStore) Snapshot() map[string]float64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	snap := make(map[string]float64, len(s.angles))
	for id, angle := range s.angles {
		snap[id] = angle
	}
	return snap
}
