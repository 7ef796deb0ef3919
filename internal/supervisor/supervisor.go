// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package supervisor starts the subprocess described by a LaunchSpec and
// exposes its output streams, cancellation and exit status.
package supervisor

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"
)

// LaunchSpec fully describes a subprocess. Adapters build it; runners only
// consume it.
type LaunchSpec struct {
	Command string
	Args    []string
	Dir     string
	// Environment is layered over the parent environment.
	Environment map[string]string
}

func (s LaunchSpec) String() string {
	return strings.Join(append([]string{s.Command}, s.Args...), " ")
}

// Environ returns parent with the launch overrides applied. Overrides are
// appended in key order so the result is deterministic.
func (s LaunchSpec) Environ(parent []string) []string {
	env := make([]string, 0, len(parent)+len(s.Environment))
	for _, kv := range parent {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := s.Environment[k]; ok {
			continue
		}
		env = append(env, kv)
	}
	for _, k := range slices.Sorted(maps.Keys(s.Environment)) {
		env = append(env, k+"="+s.Environment[k])
	}
	return env
}

// ExitStatus is the outcome of a finished process.
type ExitStatus struct {
	Code int
	// Cancelled is set when the process was killed on request, whatever
	// its exit code.
	Cancelled bool
	// Err carries runtime problems other than a non-zero exit.
	Err error
}

// Success reports a clean zero exit.
func (e ExitStatus) Success() bool {
	return e.Code == 0 && !e.Cancelled && e.Err == nil
}

// Process is a running subprocess. Both streams must be drained to EOF or
// the process may block writing to them.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until the process has exited and its streams are closed.
	Wait() ExitStatus
	// Kill requests termination. It is safe to call more than once and
	// after exit.
	Kill()
}

// Runner starts processes. Cancelling ctx has the same effect as Kill.
type Runner interface {
	Start(ctx context.Context, spec LaunchSpec) (Process, error)
}
