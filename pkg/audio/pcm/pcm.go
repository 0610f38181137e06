package pcm

import (
	"fmt"
	"io"
	"time"
)

// Format is a 16-bit mono PCM format at a fixed rate.
type Format int

const (
	// L16Mono16K is the capture format: audio/L16; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono24K is the playback format: audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K is audio/L16; rate=48000; channels=1
	L16Mono48K
)

var rates = [...]int{16000, 24000, 48000}

// FormatFor returns the format for the given sample rate.
func FormatFor(sampleRate int) (Format, bool) {
	for i, r := range rates {
		if r == sampleRate {
			return Format(i), true
		}
	}
	return 0, false
}

func (f Format) valid() bool { return f >= 0 && int(f) < len(rates) }

// SampleRate returns the sample rate in Hz.
func (f Format) SampleRate() int {
	if !f.valid() {
		panic("pcm: invalid audio format")
	}
	return rates[f]
}

// Channels returns the number of channels, always 1.
func (f Format) Channels() int { return 1 }

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes / 2 / int64(f.Channels())
}

// SamplesInDuration returns the number of samples in d.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// Duration returns the playback length of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// MIMEType returns the realtime input MIME type, for example
// "audio/pcm;rate=16000".
func (f Format) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate())
}

func (f Format) String() string {
	if !f.valid() {
		return fmt.Sprintf("pcm.Format(%d)", int(f))
	}
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", rates[f])
}

// DataChunk wraps raw PCM bytes in this format.
func (f Format) DataChunk(data []byte) Chunk {
	return &DataChunk{Data: data, fmt: f}
}

// Chunk is a piece of raw audio on its way to a sink.
type Chunk interface {
	Len() int64
	Format() Format
	WriteTo(w io.Writer) (int64, error)
}

// DataChunk is a chunk of PCM bytes.
type DataChunk struct {
	Data []byte
	fmt  Format
}

func (c *DataChunk) Len() int64     { return int64(len(c.Data)) }
func (c *DataChunk) Format() Format { return c.fmt }

// WriteTo writes the raw bytes to w.
func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}
