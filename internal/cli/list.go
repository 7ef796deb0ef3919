package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/marcelocantos/codebook/internal/lang"
	"github.com/marcelocantos/codebook/internal/notebook"
)

// RunCells lists the code cells of the notebook at path.
func (a *App) RunCells(path string) int {
	doc, err := notebook.ReadFile(path)
	if err != nil {
		return a.errorf("%v", err)
	}
	for i, h := range doc.CodeHandles() {
		c := notebook.Capture(h, doc.Block(h))
		var dirs []string
		for _, d := range c.Directives {
			dirs = append(dirs, ":"+d.String())
		}
		fmt.Fprintf(a.Stdout, "%3d  %-10s %-20s %s\n", i+1, c.Language, strings.Join(dirs, " "), firstLine(c.Source))
	}
	return ExitOK
}

func firstLine(src string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(src), "\n")
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	return line
}

// RunLanguages lists the supported languages and whether their toolchain
// is installed.
func (a *App) RunLanguages() int {
	reg := a.Kernel.Registry
	if reg == nil {
		reg = lang.Default()
	}
	for _, ad := range reg.All() {
		status := "embedded"
		if len(ad.Toolchain().Binaries) > 0 {
			bin, err := a.Kernel.Finder.Find(ad.Name(), ad.Toolchain())
			var missing *lang.MissingToolchainError
			switch {
			case errors.As(err, &missing):
				status = "missing"
			case err != nil:
				status = err.Error()
			default:
				status = bin
			}
		}
		name := ad.Name()
		if aliases := ad.Aliases(); len(aliases) > 0 {
			name += " (" + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintf(a.Stdout, "%-28s %-32s %s\n", name, status, ad.Description())
	}
	return ExitOK
}
