// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Job is work that needs the bus client, such as a write.
// Done, when set, receives the outcome on the poller goroutine.
type Job struct {
	Do   func(Client) error
	Done func(error)
}

// Run starts the ticker loop and emits PollResult on the provided channel.
// One goroutine per device. No overlap. No retries.
// Jobs run between polls on the same goroutine.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult, jobs <-chan Job) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- p.PollOnce():
			case <-ctx.Done():
				return
			}
		case j := <-jobs:
			err := p.Exec(j.Do)
			if j.Done != nil {
				j.Done(err)
			}
		}
	}
}
