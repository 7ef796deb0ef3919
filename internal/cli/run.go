package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marcelocantos/codebook/internal/kernel"
	"github.com/marcelocantos/codebook/internal/notebook"
)

// RunOptions controls run and run-all.
type RunOptions struct {
	// Cell is the 1-based code cell to run. Zero runs every cell.
	Cell int
	// Write saves outputs, inserted cells and image bumps back to the file.
	Write bool
}

// RunDocument runs one cell, or all of them, from the notebook at path.
func (a *App) RunDocument(ctx context.Context, path string, opts RunOptions) int {
	doc, err := notebook.ReadFile(path)
	if err != nil {
		return a.errorf("%v", err)
	}

	sink := newTermSink(doc, a.Stdout, a.Stderr)
	var (
		results []*kernel.Result
		runErr  error
	)
	if opts.Cell > 0 {
		h, err := doc.CodeCell(opts.Cell)
		if err != nil {
			return a.errorf("%v", err)
		}
		var res *kernel.Result
		res, runErr = a.Kernel.ExecuteCell(ctx, doc, h, sink)
		if res != nil {
			results = append(results, res)
		}
	} else {
		results, runErr = a.Kernel.ExecuteAll(ctx, doc, sink)
	}

	for _, res := range results {
		a.report(doc, res)
		a.saveState(doc, res)
	}
	if runErr != nil {
		return a.errorf("%v", runErr)
	}

	if opts.Write {
		if err := notebook.WriteFile(doc); err != nil {
			return a.errorf("%v", err)
		}
		a.logger().Debug("notebook written", zap.String("path", doc.Path))
	}
	return ExitCode(results)
}

// report prints a one-line summary of a result to stderr, keeping stdout
// for cell output.
func (a *App) report(doc *notebook.Document, res *kernel.Result) {
	var b strings.Builder
	fmt.Fprintf(&b, "[cell %d %s] %s in %s", doc.CodeNumber(res.Handle), res.Language, res.Status, res.Duration().Round(time.Millisecond))
	if res.Status == kernel.Failed && res.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", res.ExitCode)
	}
	if res.Err != nil && res.Status != kernel.Failed {
		fmt.Fprintf(&b, ": %v", res.Err)
	}
	fmt.Fprintln(a.Stderr, b.String())
}
