// Package index defines the contract between the benchmark driver and the
// key-value index under test, and ships the built-in indexes.
//
// The driver trusts the contract: a failing index is reported through the
// boolean outcome of each call, and panics are not recovered.
package index

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrPluginLoad indicates that an index plugin could not be opened or
	// does not export a usable constructor.
	ErrPluginLoad = errors.New("load index plugin")
	// ErrUnknownIndex indicates a name that is neither registered nor a
	// plugin path.
	ErrUnknownIndex = errors.New("unknown index")
)

// Index is a concurrent key-value index. Every method may be called from
// any number of goroutines at once. Slices passed in are only valid for
// the duration of the call.
type Index interface {
	// Insert adds key. It reports false if the key already exists.
	Insert(key, value []byte) bool
	// Read copies the value of key into out[:0] and returns it.
	Read(key []byte, out []byte) ([]byte, bool)
	// Update replaces the value of an existing key.
	Update(key, value []byte) bool
	// Remove deletes key. It reports false if the key was absent.
	Remove(key []byte) bool
	// Scan visits at most max records with keys >= start in key order,
	// copying their values back to back into out while they fit, and
	// returns the number of records visited. Unordered indexes return 0.
	Scan(start []byte, max int, out []byte) int
	// Close releases the index.
	Close() error
}

// Options is passed to an index constructor.
type Options struct {
	KeySize   int
	ValueSize int
	Threads   int
	// Records is the expected population, for presizing.
	Records uint64
	Params  map[string]string
}

// Param returns the named parameter or def.
func (o Options) Param(name, def string) string {
	if v, ok := o.Params[name]; ok {
		return v
	}
	return def
}

// IntParam returns the named parameter parsed as an int, or def if unset.
func (o Options) IntParam(name string, def int) (int, error) {
	v, ok := o.Params[name]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("index param %s: %w", name, err)
	}
	return n, nil
}

// BoolParam returns the named parameter parsed as a bool, or def if unset.
func (o Options) BoolParam(name string, def bool) (bool, error) {
	v, ok := o.Params[name]
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("index param %s: %w", name, err)
	}
	return b, nil
}

// Factory builds an index.
type Factory func(opts Options) (Index, error)
