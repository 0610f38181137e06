package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vibeoracle/oracle/pkg/audio/pcm"
)

// Microphone grants access to a capture device.
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// Capture is an open microphone stream of mono float samples.
type Capture interface {
	SampleRate() int

	// Read fills samples with the next captured audio and returns how many
	// were written. It returns io.EOF when the device has no more input.
	Read(samples []float32) (int, error)

	// Close stops the stream. It is safe to call more than once.
	Close() error
}

// ReaderMicrophone captures little-endian 16-bit mono PCM from R. It lets a
// file, a pipe or a websocket stand in for a capture device.
type ReaderMicrophone struct {
	R          io.Reader
	SampleRate int

	// Realtime paces reads to the wall clock, as a device would.
	Realtime bool
}

func (m *ReaderMicrophone) Open(ctx context.Context) (Capture, error) {
	if m.R == nil {
		return nil, errors.New("voice: microphone has no input")
	}
	if m.SampleRate <= 0 {
		return nil, fmt.Errorf("voice: invalid microphone rate %d", m.SampleRate)
	}
	return &readerCapture{
		ctx:      ctx,
		r:        m.R,
		rate:     m.SampleRate,
		realtime: m.Realtime,
		start:    time.Now(),
		closed:   make(chan struct{}),
	}, nil
}

type readerCapture struct {
	ctx      context.Context
	r        io.Reader
	rate     int
	realtime bool

	start time.Time
	sent  int64 // samples returned so far
	raw   []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *readerCapture) SampleRate() int { return c.rate }

func (c *readerCapture) Read(samples []float32) (int, error) {
	if c.isClosed() {
		return 0, io.EOF
	}
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	if c.realtime {
		if err := c.pace(); err != nil {
			return 0, err
		}
	}
	if cap(c.raw) < len(samples)*2 {
		c.raw = make([]byte, len(samples)*2)
	}
	raw := c.raw[:len(samples)*2]
	n, err := io.ReadFull(c.r, raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	n -= n % 2
	if n == 0 {
		return 0, err
	}
	buf, derr := pcm.DecodeAudioData(raw[:n], c.rate, 1)
	if derr != nil {
		return 0, derr
	}
	k := copy(samples, buf.Channel(0))
	c.sent += int64(k)
	return k, err
}

// pace waits until the samples already returned would have been captured.
func (c *readerCapture) pace() error {
	due := c.start.Add(time.Duration(c.sent) * time.Second / time.Duration(c.rate))
	d := time.Until(due)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-c.closed:
		return io.EOF
	}
}

func (c *readerCapture) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *readerCapture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if rc, ok := c.r.(io.Closer); ok {
			err = rc.Close()
		}
	})
	return err
}
