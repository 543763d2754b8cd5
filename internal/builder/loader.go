package builder

import (
	"fmt"
	"sync"
)

// Factory constructs a Builder for one build.
type Factory func(b *Build) Builder

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register registers a builder factory for a doctype. Duplicate doctypes are ignored.
func Register(doctype string, f Factory) {
	if f == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[doctype]; exists {
		return
	}
	registry[doctype] = f
}

// New resolves the doctype to a registered builder.
func New(doctype string, b *Build) (Builder, error) {
	registryMu.RLock()
	f := registry[doctype]
	registryMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("no builder registered for doctype %q", doctype)
	}
	return f(b), nil
}

// Doctypes returns the registered doctype names.
func Doctypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for d := range registry {
		out = append(out, d)
	}
	return out
}
