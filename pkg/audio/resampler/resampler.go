package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Converter resamples one mono float stream from one rate to another. It is
// not safe for concurrent use.
type Converter struct {
	from, to int
	r        resampling.Resampler
	in       []float64
}

// New creates a converter from rate from to rate to. When the rates are equal
// the converter passes samples through unchanged.
func New(from, to int) (*Converter, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", from, to)
	}
	c := &Converter{from: from, to: to}
	if from == to {
		return c, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create %d -> %d: %w", from, to, err)
	}
	c.r = r
	return c, nil
}

// InputRate returns the source sample rate.
func (c *Converter) InputRate() int { return c.from }

// OutputRate returns the destination sample rate.
func (c *Converter) OutputRate() int { return c.to }

// Process converts the next block of the stream. The resampler may buffer
// a few samples internally, so the output length is only approximately
// len(samples) * OutputRate / InputRate.
func (c *Converter) Process(samples []float32) ([]float32, error) {
	if c.r == nil {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}
	if cap(c.in) < len(samples) {
		c.in = make([]float64, len(samples))
	}
	in := c.in[:len(samples)]
	for i, s := range samples {
		in[i] = float64(s)
	}
	res, err := c.r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	out := make([]float32, len(res))
	for i, s := range res {
		out[i] = float32(s)
	}
	return out, nil
}

// Convert resamples a complete clip in one call.
func Convert(samples []float32, from, to int) ([]float32, error) {
	c, err := New(from, to)
	if err != nil {
		return nil, err
	}
	return c.Process(samples)
}
