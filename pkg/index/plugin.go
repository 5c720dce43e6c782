package index

import (
	"fmt"
	"plugin"
)

// PluginSymbol is the constructor a plugin must export, with the signature
// func(index.Options) (index.Index, error).
const PluginSymbol = "NewIndex"

func loadPlugin(path string) (Factory, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPluginLoad, path, err)
	}
	sym, err := p.Lookup(PluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPluginLoad, path, err)
	}
	switch f := sym.(type) {
	case func(Options) (Index, error):
		return f, nil
	case *Factory:
		return *f, nil
	case *func(Options) (Index, error):
		return *f, nil
	default:
		return nil, fmt.Errorf("%w: %s: symbol %s has type %T", ErrPluginLoad, path, PluginSymbol, sym)
	}
}
