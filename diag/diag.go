// Package diag provides the interpreter's process-visible diagnostic
// output, grounded on vm/jit.go's stdlib `log` idiom — the only place the
// teacher logs rather than returning an error. Every run and every
// assembly load gets a short correlation id from google/uuid so
// interleaved method calls in a log stream can be told apart.
package diag

import (
	"log"
	"os"

	"github.com/google/uuid"
)

// Logger wraps a *log.Logger with a run id and a verbosity switch. The zero
// Logger is silent and still safe to use.
type Logger struct {
	runID   string
	verbose bool
	std     *log.Logger
}

// New creates a Logger writing to stdout, tagged with a fresh run id.
func New(verbose bool) *Logger {
	return &Logger{
		runID:   uuid.NewString(),
		verbose: verbose,
		std:     log.New(os.Stdout, "", log.LstdFlags),
	}
}

// RunID returns this logger's correlation id.
func (l *Logger) RunID() string { return l.runID }

// AssemblyLoaded logs a successful load, tagged with a fresh per-load id so
// repeated loads of the same module name in one run stay distinguishable.
func (l *Logger) AssemblyLoaded(name string) {
	if l == nil || l.std == nil {
		return
	}
	l.std.Printf("run=%s load=%s assembly=%q loaded", l.runID, uuid.NewString(), name)
}

// MethodEnter logs a call into qualifiedName, if verbose logging is on.
func (l *Logger) MethodEnter(qualifiedName string, depth int) {
	if l == nil || l.std == nil || !l.verbose {
		return
	}
	l.std.Printf("run=%s %*senter %s", l.runID, depth*2, "", qualifiedName)
}

// MethodReturn logs a return from qualifiedName, if verbose logging is on.
func (l *Logger) MethodReturn(qualifiedName string, depth int) {
	if l == nil || l.std == nil || !l.verbose {
		return
	}
	l.std.Printf("run=%s %*sreturn %s", l.runID, depth*2, "", qualifiedName)
}

// Opcode logs one dispatched instruction, if verbose logging is on.
func (l *Logger) Opcode(name string, depth int) {
	if l == nil || l.std == nil || !l.verbose {
		return
	}
	l.std.Printf("run=%s %*s%s", l.runID, depth*2, "", name)
}

// Errorf logs a fatal-to-the-run error.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.std == nil {
		return
	}
	l.std.Printf("run=%s error: "+format, append([]any{l.runID}, args...)...)
}
