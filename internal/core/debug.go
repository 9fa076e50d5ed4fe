package core

import "github.com/davecgh/go-spew/spew"

// DumpState renders any System's internal state as a human-readable tree.
// It is meant for test failure messages and save-state debugging, not for
// anything a caller parses — the format is whatever spew produces and is
// not part of this package's compatibility surface. Grounded on
// hejops-gone/cpu/debugger.go's use of spew.Sdump for CPU-state
// inspection, here without the interactive TUI around it.
func DumpState(v any) string {
	return spew.Sdump(v)
}
