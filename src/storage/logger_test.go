package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2021, 6, 1, 8, 30, 0, 0, time.UTC)
}

func TestLoggerWritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	var console bytes.Buffer

	logger, err := NewLogger(path, INFO, &console)
	require.NoError(t, err)
	logger.now = fixedClock

	logger.Debug("hidden")
	logger.Info("pipeline started")
	logger.Error("boom")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "[2021-06-01 08:30:00] INFO: pipeline started\n[2021-06-01 08:30:00] ERROR: boom\n"
	assert.Equal(t, want, string(data))
	assert.Equal(t, want, console.String())
}

func TestNilLoggerIsSilent(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Info("nothing")
		_ = logger.Close()
	})
}

func TestReopenAfterExternalRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	logger, err := NewLogger(path, INFO, nil)
	require.NoError(t, err)
	defer logger.Close()
	logger.now = fixedClock

	logger.Info("before")
	require.NoError(t, os.Rename(path, path+".1"))
	require.NoError(t, logger.Reopen())
	logger.Info("after")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2021-06-01 08:30:00] INFO: after\n", string(data))

	old, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Contains(t, string(old), "before")
}

func TestCheckRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	logger, err := NewLogger(path, DEBUG, nil)
	require.NoError(t, err)
	defer logger.Close()
	logger.now = fixedClock

	logger.Info(strings.Repeat("x", 64))
	require.NoError(t, logger.CheckRotate("1 * 16"))

	_, err = os.Stat(filepath.Join(dir, "app.20210601083000.log"))
	assert.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	// 空表达式不轮转
	assert.NoError(t, logger.CheckRotate(""))
}

func TestParseSizeAndLevel(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), ParseSize("10 * 1024 * 1024"))
	assert.Equal(t, int64(512), ParseSize("512"))
	assert.Zero(t, ParseSize("ten"))

	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARNING, ParseLevel("WARN"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, "FATAL", FATAL.String())
}
