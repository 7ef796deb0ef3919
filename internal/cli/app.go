// Package cli implements the terminal host: it loads markdown notebooks,
// runs their cells through the kernel and prints the results.
package cli

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/marcelocantos/codebook/internal/kernel"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitFailed    = 1
	ExitUsage     = 2
	ExitCancelled = 130
)

// App holds what every subcommand needs.
type App struct {
	Kernel *kernel.Kernel
	// StateDir holds per-document state such as the last generated file.
	StateDir string
	Logger   *zap.Logger
	Stdout   io.Writer
	Stderr   io.Writer
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *App) errorf(format string, args ...any) int {
	fmt.Fprintf(a.Stderr, "codebook: "+format+"\n", args...)
	return ExitUsage
}

// ExitCode summarizes a set of results: cancelled wins over failed, and a
// recovery counts as a failure because the cell still has to be rerun.
func ExitCode(results []*kernel.Result) int {
	code := ExitOK
	for _, r := range results {
		switch r.Status {
		case kernel.Cancelled:
			return ExitCancelled
		case kernel.Failed, kernel.Recovered:
			code = ExitFailed
		}
	}
	return code
}
