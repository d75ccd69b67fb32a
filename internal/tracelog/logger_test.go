package tracelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordingLogger(t *testing.T) {
	r := &Recording{}
	r.Debugf("d %d", 1)
	r.Warnf("w %d", 2)
	r.Errorf("e %d", 3)

	assert.Equal(t, 1, len(r.Debugs))
	assert.Equal(t, 1, r.WarnCount())
	assert.Equal(t, 1, r.ErrorCount())
}

func TestDiscardLogger(t *testing.T) {
	var l Logger = Discard{}
	l.Debugf("ignored")
	l.Warnf("ignored")
	l.Errorf("ignored")
}
