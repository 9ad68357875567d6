package process

import (
	"context"
)

// Scheduler serialises the processes of a run: only the holder of the
// baton executes, and the baton changes hands only at suspension points.
type Scheduler struct {
	baton chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{baton: make(chan struct{}, 1)}
}

// Acquire blocks until the caller holds the baton or ctx is done.
func (s *Scheduler) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.baton <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	// Both cases may have been ready; a finished run never starts anyone.
	if err := ctx.Err(); err != nil {
		s.Release()
		return err
	}
	return nil
}

// Release hands the baton to the next waiting process.
func (s *Scheduler) Release() {
	<-s.baton
}

// Suspend runs wait with the baton released and takes it back before
// returning, so the caller holds the baton again whatever wait returns.
func (s *Scheduler) Suspend(wait func() error) error {
	s.Release()
	err := wait()
	s.baton <- struct{}{}
	return err
}
