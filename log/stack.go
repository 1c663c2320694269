// log/stack.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// StackFrame is one entry of a Callstack, with the function named
// relative to this module.
type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f StackFrame) String() string {
	return fmt.Sprintf("%s:%d:%s", f.File, f.Line, f.Function)
}

// maxFrames bounds the depth of a Callstack; control loops run a few
// calls deep inside their goroutines so this is rarely reached.
const maxFrames = 16

// Callstack returns the stack of the function that called the logging
// method, reusing the storage of fr. It stops at the first runtime frame
// so that goroutine entry points end the trace.
func Callstack(fr []StackFrame) []StackFrame {
	var pcs [maxFrames]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	fr = fr[:0]
	for {
		frame, more := frames.Next()
		if frame.Function == "" || strings.HasPrefix(frame.Function, "runtime.") {
			break
		}

		name := strings.TrimPrefix(frame.Function, "github.com/flightctl/flightctl/")
		fr = append(fr, StackFrame{
			File:     filepath.Base(frame.File),
			Line:     frame.Line,
			Function: strings.TrimPrefix(name, "main."),
		})

		if !more || frame.Function == "main.main" {
			break
		}
	}
	return fr
}
