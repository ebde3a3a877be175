package job

import "sync"

// Watcher fans out status-change signals to observers of individual jobs.
type Watcher interface {
	Subscribe(jobID string) (func(), <-chan struct{})
	Publish(jobID string)
	StopAll()
}

// StatusWatcher is the in-process Watcher implementation. It is safe for concurrent use.
type StatusWatcher struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewStatusWatcher constructs an empty StatusWatcher.
func NewStatusWatcher() *StatusWatcher {
	return &StatusWatcher{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers interest in jobID. The returned channel receives a signal (coalesced) after
// each committed change to the job and is closed by the unsubscribe func.
func (w *StatusWatcher) Subscribe(jobID string) (func(), <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan struct{}, 1)
	if w.subs[jobID] == nil {
		w.subs[jobID] = make(map[chan struct{}]struct{})
	}
	w.subs[jobID][ch] = struct{}{}

	unsub := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		subscribers := w.subs[jobID]
		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		drainAndClose(ch)
		if len(subscribers) == 0 {
			delete(w.subs, jobID)
		}
	}
	return unsub, ch
}

// Publish signals every subscriber of jobID without blocking.
func (w *StatusWatcher) Publish(jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for ch := range w.subs[jobID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// StopAll closes every subscription.
func (w *StatusWatcher) StopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for jobID, subscribers := range w.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(w.subs, jobID)
	}
}

// drainAndClose removes any buffered signal before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Watcher = (*StatusWatcher)(nil)
