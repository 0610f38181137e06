package output

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/vibeoracle/oracle/pkg/audio/pcm"
)

var _ Context = (*Manual)(nil)

// Manual is a Context whose clock moves only when Advance is called.
type Manual struct {
	rate int

	mu      sync.Mutex
	now     time.Duration
	handles []*handle
	closed  bool
}

// NewManual returns a manual context reporting the given sample rate.
func NewManual(sampleRate int) *Manual {
	return &Manual{rate: sampleRate}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) SampleRate() int { return m.rate }

func (m *Manual) Start(buf *pcm.Buffer, at time.Duration) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	at = max(at, m.now)
	h := newHandle(at, at+buf.Duration(), m.remove)
	if m.closed {
		h.finish()
		return h
	}
	m.handles = append(m.handles, h)
	return h
}

// Scheduled returns the handles that have not yet ended, in start order.
func (m *Manual) Scheduled() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Handle, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b Handle) int { return cmp.Compare(a.Start(), b.Start()) })
	return out
}

// Advance moves the clock forward by d and completes every buffer whose end
// has been reached.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var ended []*handle
	m.handles = slices.DeleteFunc(m.handles, func(h *handle) bool {
		if h.end <= m.now {
			ended = append(ended, h)
			return true
		}
		return false
	})
	m.mu.Unlock()
	for _, h := range ended {
		h.finish()
	}
}

func (m *Manual) Close() error {
	m.mu.Lock()
	m.closed = true
	hs := m.handles
	m.handles = nil
	m.mu.Unlock()
	for _, h := range hs {
		h.finish()
	}
	return nil
}

func (m *Manual) remove(h *handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = slices.DeleteFunc(m.handles, func(x *handle) bool { return x == h })
}
