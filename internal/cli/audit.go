package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/marcelocantos/codebook/internal/audit"
)

// RunAudit handles the codebook audit subcommand.
func RunAudit(w io.Writer, logPath string, args []string, n int) int {
	if len(args) == 0 {
		fmt.Fprintln(w, "usage: codebook audit <verify|show|tail>")
		return ExitUsage
	}

	switch args[0] {
	case "verify":
		if err := audit.Verify(logPath); err != nil {
			fmt.Fprintf(w, "audit verification FAILED: %v\n", err)
			return ExitFailed
		}
		fmt.Fprintln(w, "audit log integrity verified")
		return ExitOK

	case "show", "tail":
		entries, err := audit.Tail(logPath, n)
		if err != nil {
			fmt.Fprintf(w, "codebook audit: %v\n", err)
			return ExitFailed
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "no audit entries")
			return ExitOK
		}
		for _, e := range entries {
			data, _ := json.MarshalIndent(e, "", "  ")
			fmt.Fprintf(w, "%s\n", data)
		}
		return ExitOK

	default:
		fmt.Fprintf(w, "codebook audit: unknown subcommand %q\n", args[0])
		return ExitUsage
	}
}
