package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFacadeFramesAllFacade(t *testing.T) {
	frames := []Frame{
		{Function: "github.com/varsh009/glowroot.(*PluginServices).StartTraceEntry"},
		{Function: "github.com/varsh009/glowroot/internal/stacktrace.Capture"},
	}
	_, ok := StripFacadeFrames(frames)
	assert.False(t, ok)
}

func TestStripFacadeFramesFindsApplication(t *testing.T) {
	frames := []Frame{
		{Function: "github.com/varsh009/glowroot.(*PluginServices).StartTraceEntry"},
		{Function: "github.com/example/app.HandleRequest"},
		{Function: "main.main"},
	}
	stripped, ok := StripFacadeFrames(frames)
	assert.True(t, ok)
	assert.Equal(t, "github.com/example/app.HandleRequest", stripped[0].Function)
	assert.Len(t, stripped, 2)
}

func TestCaptureApplicationStack(t *testing.T) {
	frames, ok := CaptureApplicationStack(0, 10)
	assert.True(t, ok)
	assert.NotEmpty(t, frames)
	// This test lives under glowroot/internal/, so its own frame counts
	// as a facade frame and is stripped; its caller comes first.
	assert.Equal(t, "testing.tRunner", frames[0].Function)
}
