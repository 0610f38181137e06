package output

import (
	"sync"
	"time"

	"github.com/vibeoracle/oracle/pkg/audio/pcm"
)

// Context is an audio output clock that plays buffers at scheduled times.
type Context interface {
	// Now returns the current position of the output clock.
	Now() time.Duration

	// SampleRate returns the rate of the rendered output.
	SampleRate() int

	// Start schedules buf to begin at time at. Times in the past start
	// immediately.
	Start(buf *pcm.Buffer, at time.Duration) Handle

	// Close stops every scheduled buffer and releases the context.
	Close() error
}

// Handle is one scheduled or playing buffer.
type Handle interface {
	Start() time.Duration
	End() time.Duration

	// Stop silences the buffer. It is safe to call more than once.
	Stop()

	// Done is closed when the buffer ends naturally or is stopped.
	Done() <-chan struct{}

	// Stopped reports whether the buffer was stopped before its end.
	Stopped() bool
}

type handle struct {
	start, end time.Duration
	done       chan struct{}
	once       sync.Once
	stopped    bool
	remove     func(*handle)
}

func newHandle(start, end time.Duration, remove func(*handle)) *handle {
	return &handle{
		start:  start,
		end:    end,
		done:   make(chan struct{}),
		remove: remove,
	}
}

func (h *handle) Start() time.Duration { return h.start }
func (h *handle) End() time.Duration   { return h.end }

func (h *handle) Done() <-chan struct{} { return h.done }

func (h *handle) Stopped() bool {
	select {
	case <-h.done:
		return h.stopped
	default:
		return false
	}
}

func (h *handle) Stop() {
	h.once.Do(func() {
		h.stopped = true
		if h.remove != nil {
			h.remove(h)
		}
		close(h.done)
	})
}

func (h *handle) finish() {
	h.once.Do(func() { close(h.done) })
}

func framesToDuration(frames int64, rate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

func durationToFrames(d time.Duration, rate int) int64 {
	return int64(d) * int64(rate) / int64(time.Second)
}
