package reconcile

// seenSet remembers message ids together with the timestamp at which each
// was recorded. Correctness only requires remembering ids newer than the
// watermark floor, so entries below a prune cutoff are discarded, keeping
// the set bounded for long-lived sessions.
type seenSet struct {
	entries map[string]int64
}

func newSeenSet() *seenSet {
	return &seenSet{entries: make(map[string]int64)}
}

func (s *seenSet) Record(id string, at int64) {
	if id == "" {
		return
	}
	if existing, ok := s.entries[id]; ok && existing >= at {
		return
	}
	s.entries[id] = at
}

func (s *seenSet) Has(id string) bool {
	_, ok := s.entries[id]
	return ok
}

func (s *seenSet) Remove(id string) {
	delete(s.entries, id)
}

// Prune drops entries recorded strictly before floor and returns how many
// were removed.
func (s *seenSet) Prune(floor int64) int {
	removed := 0
	for id, at := range s.entries {
		if at < floor {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *seenSet) Len() int {
	return len(s.entries)
}
