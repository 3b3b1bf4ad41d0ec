package session

import "sync"

// epoch counts how many times the stored session has been ended. A refresh may
// only store its tokens if no logout or terminal failure happened since it started.
type epoch struct {
	mu sync.Mutex
	n  uint64
}

func (e *epoch) current() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.n
}

// end runs clear and starts a new epoch
func (e *epoch) end(clear func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n++
	return clear()
}

// commit runs save only while the epoch is still started. It reports whether save ran.
func (e *epoch) commit(started uint64, save func() error) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.n != started {
		return false, nil
	}
	return true, save()
}
