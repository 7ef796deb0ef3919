// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/marcelocantos/codebook/internal/notebook"
)

// ErrUnknownLanguage is returned for a language with no adapter.
var ErrUnknownLanguage = errors.New("unknown language")

// Registry maps language ids and aliases to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	aliases  map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		aliases:  make(map[string]string),
	}
}

// Default returns a registry with every built-in adapter registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Rust{})
	r.Register(Go{})
	r.Register(Python{})
	r.Register(Mojo{})
	r.Register(JavaScript())
	r.Register(TypeScript())
	r.Register(Bash())
	r.Register(Zsh())
	r.Register(Fish())
	r.Register(Nushell())
	r.Register(&Starlark{})
	return r
}

// Register adds an adapter under its name and aliases. Fence tags are
// resolved with notebook.LanguageID before the alias table is consulted.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
	for _, alias := range a.Aliases() {
		r.aliases[alias] = a.Name()
	}
}

// Lookup returns the adapter for a language id or alias.
func (r *Registry) Lookup(language string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := notebook.LanguageID(language)
	if canon, ok := r.aliases[name]; ok {
		name = canon
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", language, ErrUnknownLanguage)
	}
	return a, nil
}

// All returns all adapters sorted by name.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}
