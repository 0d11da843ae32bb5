package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/vitality/internal/types"
)

// maxBatch bounds how many fired jobs are dispatched together
const maxBatch = 64

// Run drives the scheduler on its interval and dispatches every emitted job
// through the default channel. Jobs already emitted when ctx is cancelled are
// still handed to the dispatcher, which reports any it could not start.
// Run returns nil on cancellation.
func (s *Service) Run(ctx context.Context) error {
	jobs := make(chan *types.NotificationJob, maxBatch)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		return s.scheduler.Run(gctx, jobs)
	})

	g.Go(func() error {
		for job := range jobs {
			batch := []*types.NotificationJob{job}
		drain:
			for len(batch) < maxBatch {
				select {
				case next, ok := <-jobs:
					if !ok {
						break drain
					}
					batch = append(batch, next)
				default:
					break drain
				}
			}
			res := s.Dispatch(gctx, batch, nil)
			s.logger.Info("reminders dispatched", "delivered", res.Delivered, "failed", res.Failed)
		}
		return nil
	})

	return g.Wait()
}
