// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Toolchain names the binaries a language needs, in order of preference,
// and where to get them. An embedded language has no binaries.
type Toolchain struct {
	Binaries   []string
	InstallURL string
}

// MissingToolchainError reports that none of a language's binaries are on
// PATH. No process is started when it is returned.
type MissingToolchainError struct {
	Language   string
	Binaries   []string
	InstallURL string
}

func (e *MissingToolchainError) Error() string {
	msg := fmt.Sprintf("%s: %s not found on PATH", e.Language, strings.Join(e.Binaries, " or "))
	if e.InstallURL != "" {
		msg += "; install it from " + e.InstallURL
	}
	return msg
}

// DefaultFinderTTL is how long a successful lookup is trusted.
const DefaultFinderTTL = 5 * time.Minute

// Finder resolves toolchain binaries. Successful lookups are cached so a
// run-all sweep does not rescan PATH for every cell.
type Finder struct {
	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)
	Logger   *zap.Logger

	mu        sync.RWMutex
	overrides map[string]string
	cache     *expirable.LRU[string, string]
}

// NewFinder returns a finder whose cache entries expire after ttl.
func NewFinder(ttl time.Duration, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		LookPath:  exec.LookPath,
		Logger:    logger,
		overrides: make(map[string]string),
		cache:     expirable.NewLRU[string, string](64, nil, ttl),
	}
}

// SetOverride pins a language to a specific binary.
func (f *Finder) SetOverride(language, binary string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[language] = binary
}

// Find returns the binary to run for language. An embedded toolchain
// resolves to "".
func (f *Finder) Find(language string, tc Toolchain) (string, error) {
	f.mu.RLock()
	override := f.overrides[language]
	f.mu.RUnlock()

	candidates := tc.Binaries
	if override != "" {
		candidates = []string{override}
	}
	if len(candidates) == 0 {
		return "", nil
	}

	for _, name := range candidates {
		if path, ok := f.cache.Get(name); ok {
			return path, nil
		}
		path, err := f.LookPath(name)
		if err != nil {
			continue
		}
		f.cache.Add(name, path)
		f.Logger.Debug("toolchain resolved",
			zap.String("language", language),
			zap.String("binary", path))
		return path, nil
	}
	return "", &MissingToolchainError{
		Language:   language,
		Binaries:   candidates,
		InstallURL: tc.InstallURL,
	}
}
