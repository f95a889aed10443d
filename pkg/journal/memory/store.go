package memory

import (
	"sync"
	"time"

	"github.com/TRPB/key-mapper/pkg/journal"
)

// Store keeps journal entries in memory. Used in tests and when the daemon
// runs without a state directory.
type Store struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Record(device, preset, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, journal.Entry{
		When:   time.Now(),
		Device: device,
		Preset: preset,
		Action: action,
	})
	return nil
}

func (s *Store) Recent(limit int) ([]journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit > len(s.entries) {
		limit = len(s.entries)
	}

	entries := make([]journal.Entry, 0, limit)
	for i := len(s.entries) - 1; i >= len(s.entries)-limit; i-- {
		entries = append(entries, s.entries[i])
	}
	return entries, nil
}
