package output

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vibeoracle/oracle/pkg/audio/pcm"
	"github.com/vibeoracle/oracle/pkg/audio/resampler"
)

var _ Context = (*Device)(nil)

// Device is a real-time Context. A render loop mixes every active buffer
// into frames of the configured period and writes them to the sink. Periods
// with nothing playing are skipped rather than written as silence.
type Device struct {
	format pcm.Format
	sink   pcm.Writer
	period time.Duration

	mu     sync.Mutex
	pos    int64 // rendered frames
	active []*deviceHandle
	closed bool

	stop chan struct{}
	wg   sync.WaitGroup
}

type deviceHandle struct {
	*handle
	first   int64
	samples []float32
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithPeriod sets the render period. The default is 20ms.
func WithPeriod(d time.Duration) DeviceOption {
	return func(dev *Device) { dev.period = d }
}

// NewDevice starts a real-time output rendering in format to sink.
func NewDevice(format pcm.Format, sink pcm.Writer, opts ...DeviceOption) *Device {
	d := &Device{
		format: format,
		sink:   sink,
		period: 20 * time.Millisecond,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Device) Now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return framesToDuration(d.pos, d.format.SampleRate())
}

func (d *Device) SampleRate() int { return d.format.SampleRate() }

func (d *Device) Start(buf *pcm.Buffer, at time.Duration) Handle {
	samples := mixdown(buf)
	if rate := d.format.SampleRate(); buf.SampleRate != rate {
		out, err := resampler.Convert(samples, buf.SampleRate, rate)
		if err != nil {
			slog.Warn("output/device: resample failed", "from", buf.SampleRate, "to", rate, "error", err)
			out = nil
		}
		samples = out
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	rate := d.format.SampleRate()
	first := max(durationToFrames(at, rate), d.pos)
	h := &deviceHandle{
		first:   first,
		samples: samples,
	}
	h.handle = newHandle(
		framesToDuration(first, rate),
		framesToDuration(first+int64(len(samples)), rate),
		func(*handle) { d.remove(h) },
	)
	if d.closed || len(samples) == 0 {
		h.finish()
		return h
	}
	d.active = append(d.active, h)
	return h
}

func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	hs := d.active
	d.active = nil
	d.mu.Unlock()

	close(d.stop)
	d.wg.Wait()
	for _, h := range hs {
		h.finish()
	}
	return nil
}

func (d *Device) remove(h *deviceHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = slices.DeleteFunc(d.active, func(x *deviceHandle) bool { return x == h })
}

func (d *Device) run() {
	defer d.wg.Done()
	frames := int(d.format.SamplesInDuration(d.period))
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.render(frames)
		}
	}
}

func (d *Device) render(n int) {
	d.mu.Lock()
	start := d.pos
	end := start + int64(n)
	d.pos = end

	var mix []float32
	var ended []*deviceHandle
	d.active = slices.DeleteFunc(d.active, func(h *deviceHandle) bool {
		last := h.first + int64(len(h.samples))
		if h.first >= end {
			return false
		}
		if mix == nil {
			mix = make([]float32, n)
		}
		for f := max(start, h.first); f < min(end, last); f++ {
			mix[f-start] += h.samples[f-h.first]
		}
		if last <= end {
			ended = append(ended, h)
			return true
		}
		return false
	})
	d.mu.Unlock()

	if mix != nil {
		if err := d.sink.Write(d.format.DataChunk(pcm.EncodeFloat32(mix))); err != nil {
			slog.Warn("output/device: sink write failed", "error", err)
		}
	}
	for _, h := range ended {
		h.finish()
	}
}

func mixdown(buf *pcm.Buffer) []float32 {
	if buf.Channels == 1 {
		return buf.Channel(0)
	}
	out := make([]float32, buf.Frames())
	for c := range buf.Channels {
		for i, s := range buf.Channel(c) {
			out[i] += s
		}
	}
	for i := range out {
		out[i] /= float32(buf.Channels)
	}
	return out
}
