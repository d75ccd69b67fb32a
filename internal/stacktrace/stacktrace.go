// Package stacktrace captures call stacks and strips the engine's own
// frames from the top, so that a captured trace for an application
// error starts at the instrumented application frame rather than
// inside the facade that captured it.
package stacktrace

import (
	"runtime"
	"strings"
)

// Frame is one stripped-down stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// facadePackages lists the import-path prefixes considered "this
// engine" for the purposes of stripping. A captured stack's leading
// frames are discarded until the first frame whose Function does not
// start with one of these prefixes.
var facadePackages = []string{
	"github.com/varsh009/glowroot.",
	"github.com/varsh009/glowroot/internal/",
}

// Capture walks the calling goroutine's stack, skipping `skip` frames
// (in addition to Capture's own frame), and returns up to maxFrames
// entries.
func Capture(skip, maxFrames int) []Frame {
	pcs := make([]uintptr, maxFrames+skip+1)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more || len(out) >= maxFrames {
			break
		}
	}
	return out
}

// StripFacadeFrames discards leading frames belonging to the engine
// itself, returning the remainder starting at the first frame that
// belongs to instrumented application code (the frame immediately
// following the weaver-inserted advice, conceptually). If every frame
// belongs to the facade, it returns nil and ok=false so the caller can
// log at warn per the engine's error-handling design.
func StripFacadeFrames(frames []Frame) (stripped []Frame, ok bool) {
	for i, f := range frames {
		if !isFacadeFrame(f.Function) {
			return frames[i:], true
		}
	}
	return nil, false
}

func isFacadeFrame(function string) bool {
	for _, prefix := range facadePackages {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}

// CaptureApplicationStack is the convenience entry point used by the
// facade: capture the stack and strip the engine's own frames in one
// call.
func CaptureApplicationStack(skip, maxFrames int) ([]Frame, bool) {
	return StripFacadeFrames(Capture(skip+1, maxFrames+8))
}
