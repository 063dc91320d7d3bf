package ecs

// BeginPass opens a read pass. Passes nest; changes are applied when the
// outermost pass ends.
func (s *Store) BeginPass() {
	s.passDepth++
}

// EndPass closes a read pass and applies the changes queued during it.
func (s *Store) EndPass() {
	if s.passDepth == 0 {
		return
	}
	s.passDepth--
	if s.passDepth > 0 {
		return
	}
	// Applying a change may not queue more, but keep draining in case.
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		for _, fn := range batch {
			fn()
		}
	}
}

// InPass reports whether a read pass is open.
func (s *Store) InPass() bool { return s.passDepth > 0 }

// Pending returns the number of queued structural changes.
func (s *Store) Pending() int { return len(s.pending) }

func (s *Store) mutate(fn func()) {
	if s.passDepth > 0 {
		s.pending = append(s.pending, fn)
		return
	}
	fn()
}
