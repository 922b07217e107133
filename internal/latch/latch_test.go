package latch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnsetWhenMarkerAbsent(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "FOUND.txt"))
	require.NoError(t, err)
	assert.False(t, l.Found())
}

func TestOpen_SetWhenMarkerAlreadyExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "FOUND.txt")
	require.NoError(t, os.WriteFile(path, []byte("found=x\n"), 0o644))

	l, err := Open(path)
	require.NoError(t, err)
	assert.True(t, l.Found())
}

func TestSet_IsIdempotentOnInMemoryFlagButAppendsEveryCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "FOUND.txt")
	l, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, l.Set("worker-1", "hunter2"))
	require.NoError(t, l.Set("worker-1", "hunter2"))
	require.NoError(t, l.Set("worker-2", "hunter2"))

	assert.True(t, l.Found())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(string(data))
	assert.Len(t, lines, 3, "each confirmation appends its own stanza")
}

func TestReset_BacksUpAndClearsMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "FOUND.txt")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Set("worker-1", "hunter2"))

	require.NoError(t, l.Reset())
	assert.False(t, l.Found())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	matches, err := filepath.Glob(path + ".bak-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestReset_NoOpWhenMarkerAbsent(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "FOUND.txt"))
	require.NoError(t, err)
	assert.NoError(t, l.Reset())
	assert.False(t, l.Found())
}

func splitLines(s string) []string {
	var lines []string
	cur := ""
	for _, r := range s {
		if r == '\n' {
			if cur != "" {
				lines = append(lines, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
