// Package workerpool implements the Worker Runtime's parallel fan-out of a
// leased batch across local execution units, with early-exit on match
// (spec.md §4.6). Execution units are strictly CPU-bound and perform no I/O.
package workerpool

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/vaultcrack/recoverd/internal/verify"
	"github.com/vaultcrack/recoverd/internal/walletdesc"
)

// LogicalCPUCount discovers the host's logical CPU count via gopsutil
// rather than bare runtime.NumCPU(), so the advertised cpu_count reflects
// what CPU_USAGE_RATIO is meant to scale.
func LogicalCPUCount() (int, error) {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return 1, err
	}
	return n, nil
}

// Result is what a completed fan-out produces.
type Result struct {
	Matched    bool
	Passphrase string
}

// Run partitions passphrases into w contiguous chunks of ceil(n/w), runs
// verify.Try over each chunk in its own goroutine, and returns as soon as
// any goroutine finds a match or all goroutines finish without one. Peers
// observe cancellation between trials, never mid-trial.
func Run(ctx context.Context, w int, passphrases []string, desc walletdesc.Descriptor) Result {
	if w <= 0 {
		w = 1
	}
	if len(passphrases) == 0 {
		return Result{}
	}

	g, gctx := errgroup.WithContext(ctx)
	chunkSize := (len(passphrases) + w - 1) / w

	var result Result
	resultCh := make(chan string, 1)

	for start := 0; start < len(passphrases); start += chunkSize {
		end := start + chunkSize
		if end > len(passphrases) {
			end = len(passphrases)
		}
		chunk := passphrases[start:end]

		g.Go(func() error {
			for _, p := range chunk {
				select {
				case <-gctx.Done():
					return nil
				default:
				}
				if verify.Try(p, desc) {
					select {
					case resultCh <- p:
					default:
					}
					return errFound
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == errFound {
		select {
		case p := <-resultCh:
			result = Result{Matched: true, Passphrase: p}
		default:
		}
	}
	return result
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errFound = sentinelError("match found")
