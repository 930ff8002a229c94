package memory

import "sync"

// faults makes the next call of an operation fail, for atomicity tests.
type faults struct {
	mu   sync.Mutex
	next map[string]error
}

// FailNext makes the next call of op return err.
func (f *faults) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == nil {
		f.next = map[string]error{}
	}
	f.next[op] = err
}

func (f *faults) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.next[op]
	delete(f.next, op)
	return err
}
