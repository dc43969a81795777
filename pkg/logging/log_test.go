package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLogMode(InfoMode)
	})
	return &buf
}

func TestLogModes(t *testing.T) {
	buf := capture(t)

	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), " INFO shown 2")

	SetLogMode(WarningMode)
	buf.Reset()
	Infof("quiet")
	Warningf("loud")
	Errorf("louder")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), " WARNING loud")
	assert.Contains(t, buf.String(), " ERROR louder")

	SetLogMode(SilentMode)
	buf.Reset()
	Errorf("nothing")
	assert.Empty(t, buf.String())
}

func TestTimeLog(t *testing.T) {
	buf := capture(t)
	tlog := NewTimeLog()
	tlog.Infof("pair %d done", 3)
	assert.True(t, strings.Contains(buf.String(), "pair 3 done: "), buf.String())
}

func TestSetLoggerFile(t *testing.T) {
	capture(t)
	path := filepath.Join(t.TempDir(), "run.log")

	c := &Config{Logfile: path, MaxSize: 1, MaxAge: 1, Verbose: true}
	c.SetLogger()
	Debugf("to file")
	Shutdown()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), " DEBUG to file")
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1,234,567", Count(1234567))
	assert.Equal(t, "83 MB", Bytes(83*1000*1000))
}
