// logger.go - lightweight per-component debug logging

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import (
	"fmt"
	"time"
)

// Logger prints a timestamped line for one named component, the way
// each piece of hardware in this codebase has always logged itself.
// The start time is captured once, at construction, rather than kept
// behind a package-level global: every Logger owns its own clock.
type Logger struct {
	name    string
	start   time.Time
	enabled bool
}

// NewLogger creates a logger for the named component. enabled gates
// every call to Logf to a no-op, so debug tracing costs nothing when
// the emulator is run without -debug.
func NewLogger(name string, enabled bool) *Logger {
	return &Logger{name: name, start: time.Now(), enabled: enabled}
}

// Logf prints a formatted debug line if the logger is enabled.
func (l *Logger) Logf(format string, args ...any) {
	if l == nil || !l.enabled {
		return
	}
	fmt.Printf("[%s +%6dus] %s\n", l.name, time.Since(l.start).Microseconds(), fmt.Sprintf(format, args...))
}
