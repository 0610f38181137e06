package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDecode is returned when audio or base64 input cannot be decoded.
var ErrDecode = errors.New("pcm: decode error")

// EncodeBase64 returns the standard base64 encoding of b. Empty input
// encodes to the empty string.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes standard base64 text produced by EncodeBase64.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}
	return b, nil
}

// Buffer is decoded, playable audio: planar float32 samples in [-1, 1).
type Buffer struct {
	SampleRate int
	Channels   int

	data [][]float32
}

// DecodeAudioData interprets data as little-endian signed 16-bit PCM with
// interleaved channels and returns a playable buffer.
func DecodeAudioData(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: invalid rate %d or channels %d", ErrDecode, sampleRate, channels)
	}
	if len(data)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrDecode, len(data), channels)
	}
	frames := len(data) / (2 * channels)
	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		data:       make([][]float32, channels),
	}
	for c := range channels {
		buf.data[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			off := (i*channels + c) * 2
			s := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.data[c][i] = float32(s) / 32768
		}
	}
	return buf, nil
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.data) == 0 {
		return 0
	}
	return len(b.data[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Channel returns the samples of channel i. The slice is shared.
func (b *Buffer) Channel(i int) []float32 {
	return b.data[i]
}

// PCM16 re-encodes the buffer as interleaved little-endian 16-bit PCM.
func (b *Buffer) PCM16() []byte {
	frames := b.Frames()
	out := make([]byte, frames*b.Channels*2)
	for i := range frames {
		for c := range b.Channels {
			off := (i*b.Channels + c) * 2
			binary.LittleEndian.PutUint16(out[off:], uint16(floatToInt16(b.data[c][i])))
		}
	}
	return out
}

// Slice returns the frames in [from, to) as a new buffer sharing storage.
func (b *Buffer) Slice(from, to int) *Buffer {
	out := &Buffer{SampleRate: b.SampleRate, Channels: b.Channels, data: make([][]float32, len(b.data))}
	for c := range b.data {
		out.data[c] = b.data[c][from:to]
	}
	return out
}

// EncodeFloat32 converts mono float samples in [-1, 1] to little-endian
// 16-bit PCM. Out-of-range samples are clamped.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
