// Package playback is the turn audio player: it speaks one chat message at a
// time, moving through idle, loading and playing. A new Play always stops
// whatever was audible before it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vibeoracle/oracle/pkg/audio/output"
	"github.com/vibeoracle/oracle/pkg/audio/pcm"
)

// State is the player state.
type State int

const (
	Idle State = iota
	Loading
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	}
	return "unknown"
}

// ErrNoAudio is returned by Play when synthesis yields no samples.
var ErrNoAudio = errors.New("playback: no audio")

// Synthesizer turns text into raw 16-bit mono PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Player plays synthesized speech for chat messages.
type Player struct {
	synth  Synthesizer
	out    output.Context
	voice  string
	format pcm.Format

	// OnChange, if set, is called after every state change with the new
	// state and the message it concerns. It runs outside the player lock.
	OnChange func(state State, messageID string)

	mu        sync.Mutex
	gen       uint64
	state     State
	messageID string
	cancel    context.CancelFunc
	handle    output.Handle
}

// Option configures a Player.
type Option func(*Player)

// WithVoice selects the synthesis voice.
func WithVoice(v string) Option {
	return func(p *Player) { p.voice = v }
}

// WithFormat sets the PCM format the synthesizer returns. The default is
// 24 kHz mono.
func WithFormat(f pcm.Format) Option {
	return func(p *Player) { p.format = f }
}

// New returns an idle player rendering to out.
func New(synth Synthesizer, out output.Context, opts ...Option) *Player {
	p := &Player{synth: synth, out: out, format: pcm.L16Mono24K}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state and the message it concerns.
func (p *Player) State() (State, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.messageID
}

// Play stops any current utterance, then synthesizes and plays text for
// messageID. It returns once playback has started, or with an error if
// synthesis or decoding failed, in which case the player is idle again. A
// Play or Stop issued while this call is loading supersedes it, and Play
// then returns nil without playing anything.
func (p *Player) Play(ctx context.Context, messageID, text string) error {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.stopLocked()
	p.gen++
	gen := p.gen
	p.state = Loading
	p.messageID = messageID
	p.cancel = cancel
	p.mu.Unlock()
	p.notify(Loading, messageID)

	data, err := p.synth.Synthesize(ctx, text, p.voice)
	var buf *pcm.Buffer
	if err == nil {
		buf, err = pcm.DecodeAudioData(data, p.format.SampleRate(), p.format.Channels())
	}
	if err == nil && buf.Frames() == 0 {
		err = ErrNoAudio
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		cancel()
		return nil
	}
	if err != nil {
		p.resetLocked()
		p.mu.Unlock()
		p.notify(Idle, messageID)
		slog.Warn("playback: speech failed", "message", messageID, "error", err)
		return fmt.Errorf("playback: %w", err)
	}
	h := p.out.Start(buf, p.out.Now())
	p.handle = h
	p.state = Playing
	p.mu.Unlock()
	p.notify(Playing, messageID)

	go p.watch(gen, h)
	return nil
}

// Stop halts playback or cancels loading. It is a no-op when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.state == Idle {
		p.mu.Unlock()
		return
	}
	id := p.messageID
	p.stopLocked()
	p.gen++
	p.mu.Unlock()
	p.notify(Idle, id)
}

func (p *Player) watch(gen uint64, h output.Handle) {
	<-h.Done()
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	id := p.messageID
	p.resetLocked()
	p.mu.Unlock()
	p.notify(Idle, id)
}

func (p *Player) stopLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.handle != nil {
		p.handle.Stop()
	}
	p.resetLocked()
}

func (p *Player) resetLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.handle = nil
	p.state = Idle
	p.messageID = ""
}

func (p *Player) notify(s State, id string) {
	if p.OnChange != nil {
		p.OnChange(s, id)
	}
}
