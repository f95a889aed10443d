package injection

import "sync"

// KeycodeTable maps key names to kernel keycodes. The daemon overwrites it
// from the xmodmap dump of the user session before each injection, so a new
// pipeline always sees the keys of the current system layout. Last writer
// wins.
type KeycodeTable struct {
	mu    sync.RWMutex
	codes map[string]int
}

func NewKeycodeTable() *KeycodeTable {
	return &KeycodeTable{codes: make(map[string]int)}
}

// Update merges the given name to keycode entries, overwriting existing ones.
func (t *KeycodeTable) Update(codes map[string]int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, code := range codes {
		t.codes[name] = code
	}
}

func (t *KeycodeTable) Get(name string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	code, ok := t.codes[name]
	return code, ok
}

func (t *KeycodeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.codes)
}
