package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ManifestName is the file a directory must contain to be accepted as a
// configuration directory.
const ManifestName = "config.json"

// Store holds the parsed configuration manifest. Values are kept as the
// generic JSON tree so that broken entries written by earlier versions can
// still be read and cleaned up.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]any
}

func NewStore() *Store {
	return &Store{values: make(map[string]any)}
}

// Load replaces the store content with the manifest at path. The path is
// remembered for Save.
func (s *Store) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	values := make(map[string]any)
	if err := json.NewDecoder(file).Decode(&values); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.values = values
	return nil
}

// Get walks the nested manifest along keyPath. The second return is false
// when any segment is missing.
func (s *Store) Get(keyPath ...string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current any = s.values
	for _, key := range keyPath {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Remove deletes the entry at keyPath if it exists.
func (s *Store) Remove(keyPath ...string) {
	if len(keyPath) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current any = s.values
	for _, key := range keyPath[:len(keyPath)-1] {
		node, ok := current.(map[string]any)
		if !ok {
			return
		}
		current, ok = node[key]
		if !ok {
			return
		}
	}

	if node, ok := current.(map[string]any); ok {
		delete(node, keyPath[len(keyPath)-1])
	}
}

// Save writes the manifest back to the path it was loaded from.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return fmt.Errorf("no config loaded")
	}

	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.values); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}

// AutoloadDevices lists the devices that have an autoload assignment, in a
// stable order. Values are not validated here; corrupt entries are handled
// by the caller.
func (s *Store) AutoloadDevices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.values["autoload"].(map[string]any)
	if !ok {
		return nil
	}

	devices := make([]string, 0, len(node))
	for device := range node {
		devices = append(devices, device)
	}
	sort.Strings(devices)
	return devices
}
