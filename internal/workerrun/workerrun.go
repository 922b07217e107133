// Package workerrun implements the Worker Control Loop: lease -> verify ->
// report with backoff, shutdown-on-found, and retry-on-report-failure
// (spec.md §4.6).
package workerrun

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultcrack/recoverd/internal/coordclient"
	"github.com/vaultcrack/recoverd/internal/logging"
	"github.com/vaultcrack/recoverd/internal/workerpool"
)

const (
	leaseBackoff        = 10 * time.Second
	confirmBackoff      = 5 * time.Second
	confirmMaxAttempts  = 5
	fallbackRetryDelay  = 10 * time.Second
	fallbackMaxAttempts = 3
)

// Runner drives the outer loop for one worker process.
type Runner struct {
	client     *coordclient.Client
	workerID   string
	cpuCount   int
	maxWorkers int
	log        *logging.Logger
}

// New builds a Runner. cpuCount is the gopsutil-discovered logical CPU
// count (already scaled by CPU_USAGE_RATIO); maxWorkers is MAX_WORKERS, 0
// meaning uncapped.
func New(client *coordclient.Client, workerID string, cpuCount, maxWorkers int, log *logging.Logger) *Runner {
	return &Runner{
		client:     client,
		workerID:   workerID,
		cpuCount:   cpuCount,
		maxWorkers: maxWorkers,
		log:        log,
	}
}

func (r *Runner) localParallelism() int {
	w := r.cpuCount
	if r.maxWorkers > 0 && r.maxWorkers < w {
		w = r.maxWorkers
	}
	if w <= 0 {
		w = 1
	}
	return w
}

// Loop runs the outer control loop until ctx is cancelled or the latch is
// observed set and the worker exits.
func (r *Runner) Loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		lease, err := r.client.Lease(ctx, coordclient.LeaseRequest{
			CPUCount: r.cpuCount,
			ClientID: r.workerID,
		})
		if err != nil {
			r.log.WithError(err).Warn("lease request failed, retrying")
			if !sleep(ctx, leaseBackoff) {
				return nil
			}
			continue
		}

		if lease.PasswordFound || !lease.Success || len(lease.Passwords) == 0 {
			if lease.PasswordFound {
				r.log.Info("coordinator reports password already found, exiting")
				return nil
			}
			if !sleep(ctx, leaseBackoff) {
				return nil
			}
			continue
		}

		w := r.localParallelism()
		result := workerpool.Run(ctx, w, lease.Passwords, lease.Encrypt)

		if result.Matched {
			r.log.WithFields(map[string]interface{}{"batch_id": lease.BatchID}).Info("match found, reporting")
			if err := r.reportSuccess(ctx, lease.BatchID, lease.Passwords, result.Passphrase); err != nil {
				r.log.WithError(err).Error("failed to report match")
			}
			r.confirmFoundWithFallback(ctx, result.Passphrase)
			return nil
		}

		if err := r.reportFailure(ctx, lease.BatchID, lease.Passwords); err != nil {
			r.log.WithError(err).Warn("failed to report batch result")
		}
	}
}

func (r *Runner) reportSuccess(ctx context.Context, batchID string, passwords []string, found string) error {
	_, err := r.client.Report(ctx, coordclient.ResultRequest{
		BatchID:       batchID,
		ClientID:      r.workerID,
		Success:       true,
		FoundPassword: found,
		Passwords:     passwords,
	})
	return err
}

func (r *Runner) reportFailure(ctx context.Context, batchID string, passwords []string) error {
	_, err := r.client.Report(ctx, coordclient.ResultRequest{
		BatchID:   batchID,
		ClientID:  r.workerID,
		Success:   false,
		Passwords: passwords,
	})
	return err
}

// confirmFoundWithFallback implements spec.md §4.6 step 4's confirm-found
// retry policy: up to 5 attempts with 5s backoff, then up to 3 more
// attempts at a 10s periodic retry before giving up.
func (r *Runner) confirmFoundWithFallback(ctx context.Context, passphrase string) {
	for attempt := 0; attempt < confirmMaxAttempts; attempt++ {
		if r.confirmFound(ctx, passphrase) {
			return
		}
		if !sleep(ctx, confirmBackoff) {
			return
		}
	}
	for attempt := 0; attempt < fallbackMaxAttempts; attempt++ {
		if r.confirmFound(ctx, passphrase) {
			return
		}
		if !sleep(ctx, fallbackRetryDelay) {
			return
		}
	}
	r.log.Error(fmt.Sprintf("giving up on confirm-found for %q after exhausting all retries", passphrase))
}

func (r *Runner) confirmFound(ctx context.Context, passphrase string) bool {
	_, err := r.client.ConfirmFound(ctx, coordclient.FoundRequest{
		Password: passphrase,
		ClientID: r.workerID,
	})
	if err != nil {
		r.log.WithError(err).Warn("confirm-found attempt failed")
		return false
	}
	return true
}

// sleep waits for d or until ctx is cancelled, returning false in the
// latter case so callers can exit promptly.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
