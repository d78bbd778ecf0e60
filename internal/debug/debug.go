// Package debug holds environment-gated diagnostics for rangepatch.
//
// Output is enabled with RANGEPATCH_DEBUG=1, or with a DEBUG variable whose
// comma separated list names "rangepatch" (or "*").
package debug

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	enabled bool
	out     io.Writer = os.Stderr
)

func init() {
	enabled = fromEnv(os.Getenv("RANGEPATCH_DEBUG"), os.Getenv("DEBUG"))
}

func fromEnv(own, shared string) bool {
	if own != "" {
		b, _ := strconv.ParseBool(own)
		return b
	}
	for _, ns := range strings.Split(shared, ",") {
		switch strings.TrimSpace(ns) {
		case "rangepatch", "rangepatch:*", "*":
			return true
		}
	}
	return false
}

// Enabled reports whether debug output is on.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetOutput redirects debug output and switches it on or off. It returns a
// func restoring the previous state.
func SetOutput(w io.Writer, on bool) func() {
	mu.Lock()
	defer mu.Unlock()
	prevW, prevOn := out, enabled
	out, enabled = w, on
	return func() {
		mu.Lock()
		out, enabled = prevW, prevOn
		mu.Unlock()
	}
}

// Logf writes a "rangepatch: " prefixed line when debug output is on.
// Maps and slices are rendered as JSON.
func Logf(msg string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	for i, a := range args {
		switch a.(type) {
		case map[string]any, []any:
			d, err := json.Marshal(a)
			if err != nil {
				continue
			}
			args[i] = string(d)
		}
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprintf(out, "rangepatch: "+msg, args...)
}
