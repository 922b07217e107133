package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultcrack/recoverd/internal/logging"
)

type fakeReclaimer struct {
	calledWith int64
	returnN    int64
	returnErr  error
}

func (f *fakeReclaimer) ReclaimStale(ctx context.Context, ageSeconds int64) (int64, error) {
	f.calledWith = ageSeconds
	return f.returnN, f.returnErr
}

func TestForce_InvokesReclaimStaleWithThirtySixHundredSeconds(t *testing.T) {
	r := &fakeReclaimer{returnN: 3}
	s, err := New(r, 60, logging.NewDefault("test"))
	require.NoError(t, err)

	n, err := s.Force(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(3600), r.calledWith)
}

func TestForce_PropagatesReclaimerError(t *testing.T) {
	r := &fakeReclaimer{returnErr: errors.New("boom")}
	s, err := New(r, 60, logging.NewDefault("test"))
	require.NoError(t, err)

	_, err = s.Force(context.Background())
	assert.Error(t, err)
}

func TestNew_DefaultsIntervalWhenNonPositive(t *testing.T) {
	r := &fakeReclaimer{}
	s, err := New(r, 0, logging.NewDefault("test"))
	require.NoError(t, err)

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, cron.ConstantDelaySchedule{Delay: 60 * time.Minute}, entries[0].Schedule)
}
