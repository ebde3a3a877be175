package service

import (
	"context"
	"time"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// DefaultWatchLimit caps Watch when the caller passes no limit.
const DefaultWatchLimit = time.Minute

// Watch long-polls a job. It returns as soon as the job's status or progress differs from the
// snapshot taken on entry, or with the unchanged record once wait elapses. changed reports which.
func (s *JobService) Watch(
	ctx context.Context,
	id string,
	wait, limit time.Duration,
) (rec *model.JobRecord, changed bool, err error) {
	if limit <= 0 {
		limit = DefaultWatchLimit
	}
	if err := validateJobID(id); err != nil {
		return nil, false, err
	}

	// Subscribe before the snapshot so a write between the two is not missed.
	unsubscribe, signals := s.watcher.Subscribe(id)
	defer unsubscribe()

	start, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if start.Status.Terminal() {
		return start, false, nil
	}

	timer := time.NewTimer(watchDeadline(wait, limit))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return start, false, nil
		case <-timer.C:
			return start, false, nil
		case _, ok := <-signals:
			if !ok {
				return start, false, nil
			}
			cur, err := s.load(ctx, id)
			if err != nil {
				return nil, false, err
			}
			if cur.Status != start.Status || cur.Progress != start.Progress {
				return cur, true, nil
			}
		}
	}
}

// StopAllListeners ends every pending Watch. Called on shutdown so long polls return promptly.
func (s *JobService) StopAllListeners() {
	s.watcher.StopAll()
}
