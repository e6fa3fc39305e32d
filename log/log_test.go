package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(args ...any)                 { r.lines = append(r.lines, "debug") }
func (r *recordingLogger) Debugf(f string, args ...any)       { r.lines = append(r.lines, "debugf") }
func (r *recordingLogger) Info(args ...any)                  { r.lines = append(r.lines, "info") }
func (r *recordingLogger) Infof(f string, args ...any)        { r.lines = append(r.lines, "infof") }
func (r *recordingLogger) Warn(args ...any)                  { r.lines = append(r.lines, "warn") }
func (r *recordingLogger) Warnf(f string, args ...any)        { r.lines = append(r.lines, "warnf") }
func (r *recordingLogger) Error(args ...any)                 { r.lines = append(r.lines, "error") }
func (r *recordingLogger) Errorf(f string, args ...any)       { r.lines = append(r.lines, "errorf") }

func TestPackageFuncsDelegateToDefault(t *testing.T) {
	old := Default
	defer func() { Default = old }()

	rec := &recordingLogger{}
	Default = rec

	Debug("x")
	Debugf("%s", "x")
	Info("x")
	Infof("%s", "x")
	Warn("x")
	Warnf("%s", "x")
	Error("x")
	Errorf("%s", "x")

	assert.Equal(t, []string{"debug", "debugf", "info", "infof", "warn", "warnf", "error", "errorf"}, rec.lines)
}
