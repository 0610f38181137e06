package voice

import (
	"sync"
	"time"

	"github.com/vibeoracle/oracle/pkg/audio/output"
	"github.com/vibeoracle/oracle/pkg/audio/pcm"
)

// scheduler queues received audio on an output clock so that each buffer
// starts no earlier than the end of the previous one.
type scheduler struct {
	out output.Context

	// changed is called, outside the lock, whenever the live set may have
	// gone from empty to non-empty or back.
	changed func()

	mu        sync.Mutex
	nextStart time.Duration
	live      map[output.Handle]struct{}
}

func newScheduler(out output.Context, changed func()) *scheduler {
	return &scheduler{
		out:     out,
		changed: changed,
		live:    make(map[output.Handle]struct{}),
	}
}

func (s *scheduler) schedule(buf *pcm.Buffer) output.Handle {
	s.mu.Lock()
	at := max(s.out.Now(), s.nextStart)
	h := s.out.Start(buf, at)
	s.nextStart = h.End()
	s.live[h] = struct{}{}
	s.mu.Unlock()

	s.notify()
	go s.watch(h)
	return h
}

func (s *scheduler) watch(h output.Handle) {
	<-h.Done()
	s.mu.Lock()
	_, ok := s.live[h]
	delete(s.live, h)
	s.mu.Unlock()
	if ok {
		s.notify()
	}
}

// busy reports whether any buffer is scheduled or playing.
func (s *scheduler) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live) > 0
}

// drain stops every queued buffer and rewinds the queue to the clock.
func (s *scheduler) drain() {
	s.mu.Lock()
	hs := make([]output.Handle, 0, len(s.live))
	for h := range s.live {
		hs = append(hs, h)
	}
	clear(s.live)
	s.nextStart = 0
	s.mu.Unlock()

	for _, h := range hs {
		h.Stop()
	}
	if len(hs) > 0 {
		s.notify()
	}
}

func (s *scheduler) notify() {
	if s.changed != nil {
		s.changed()
	}
}
