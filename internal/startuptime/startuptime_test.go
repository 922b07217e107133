package startuptime

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WritesCurrentTimeWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "startup.txt")

	before := time.Now()
	got, err := Load(path)
	require.NoError(t, err)

	assert.WithinDuration(t, before, got, 2*time.Second)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = strconv.ParseInt(string(data[:len(data)-1]), 10, 64)
	assert.NoError(t, err)
}

func TestLoad_ReadsExistingValidArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "startup.txt")
	want := time.UnixMilli(1700000000000)
	require.NoError(t, os.WriteFile(path, []byte(strconv.FormatInt(want.UnixMilli(), 10)), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}

func TestLoad_RewritesWhenArtifactUnparseable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "startup.txt")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number"), 0o644))

	before := time.Now()
	got, err := Load(path)
	require.NoError(t, err)
	assert.WithinDuration(t, before, got, 2*time.Second)
}

func TestFormatUptime_RendersLargestUnitsFirst(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "0s", FormatUptime(now))
	assert.Equal(t, "5m0s", FormatUptime(now.Add(-5*time.Minute)))
	assert.Equal(t, "2h5m", FormatUptime(now.Add(-2*time.Hour-5*time.Minute)))
	assert.Equal(t, "3d2h5m", FormatUptime(now.Add(-3*24*time.Hour-2*time.Hour-5*time.Minute)))
}

func TestFormatUptime_ClampsFutureTimestampsToZero(t *testing.T) {
	assert.Equal(t, "0s", FormatUptime(time.Now().Add(time.Hour)))
}
