package index

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a factory available under name. It panics if the name is
// empty, already registered, or f is nil.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || f == nil {
		panic("index: Register with empty name or nil factory")
	}
	if _, dup := factories[name]; dup {
		panic("index: Register called twice for " + name)
	}
	factories[name] = f
}

// Names returns the registered index names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// IsPluginPath reports whether nameOrPath refers to a plugin file rather
// than a registered name.
func IsPluginPath(nameOrPath string) bool {
	return strings.HasSuffix(nameOrPath, ".so") || strings.ContainsRune(nameOrPath, filepath.Separator)
}

// Lookup resolves nameOrPath to a factory, loading a plugin if needed.
func Lookup(nameOrPath string) (Factory, error) {
	if IsPluginPath(nameOrPath) {
		return loadPlugin(nameOrPath)
	}
	mu.RLock()
	f, ok := factories[nameOrPath]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (built-in: %s)", ErrUnknownIndex, nameOrPath, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Open resolves nameOrPath and builds the index.
func Open(nameOrPath string, opts Options) (Index, error) {
	f, err := Lookup(nameOrPath)
	if err != nil {
		return nil, err
	}
	idx, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", nameOrPath, err)
	}
	return idx, nil
}
