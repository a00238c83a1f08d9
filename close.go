package nodegraph

// Close releases the caches of the store. Operations on a closed store fail
// with ErrClosed. Close is idempotent.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.types.Range(func(_ string, t *nodeType) bool {
		for _, p := range t.props {
			s.reg.ForgetPairs(p.index())
		}
		return true
	})
	s.reg.Clear()
	return nil
}
