package memory

import (
	"context"
	"sync"
)

// LocalStore is an in-process SessionStore. A single mutex serializes all
// mutations, which makes PushTrim atomic. Data does not survive a restart.
type LocalStore struct {
	mu    sync.Mutex
	lists map[string][]string
}

func NewLocalStore() *LocalStore {
	return &LocalStore{lists: make(map[string][]string)}
}

func (s *LocalStore) PushTrim(_ context.Context, key string, items []string, max int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.lists[key], items...)
	if max > 0 && int64(len(list)) > max {
		list = append([]string(nil), list[int64(len(list))-max:]...)
	}
	s.lists[key] = list
	return nil
}

func (s *LocalStore) Range(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	lo, hi, ok := listBounds(int64(len(list)), start, stop)
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), list[lo:hi+1]...), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, key)
	return nil
}

// listBounds resolves LRANGE style indexes against a list of length n.
func listBounds(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
