package playback

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/vibeoracle/oracle/pkg/audio/output"
)

type fakeSynth struct {
	mu    sync.Mutex
	data  []byte
	err   error
	gate  chan struct{} // when set, Synthesize waits for it or ctx
	texts []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.data, f.err
}

// pcmSeconds returns d of silent 24 kHz mono PCM.
func pcmSeconds(d time.Duration) []byte {
	return make([]byte, int(24000*d/time.Second)*2)
}

func waitState(t *testing.T, p *Player, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, _ := p.State(); s == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	s, _ := p.State()
	t.Fatalf("state = %v, want %v", s, want)
}

func TestPlayToNaturalEnd(t *testing.T) {
	out := output.NewManual(24000)
	synth := &fakeSynth{data: pcmSeconds(time.Second)}
	p := New(synth, out)

	var mu sync.Mutex
	var changes []State
	p.OnChange = func(s State, _ string) {
		mu.Lock()
		changes = append(changes, s)
		mu.Unlock()
	}

	if err := p.Play(context.Background(), "m1", "hello"); err != nil {
		t.Fatal(err)
	}
	if s, id := p.State(); s != Playing || id != "m1" {
		t.Fatalf("State() = %v %q, want playing m1", s, id)
	}
	out.Advance(time.Second)
	waitState(t, p, Idle)

	mu.Lock()
	defer mu.Unlock()
	want := []State{Loading, Playing, Idle}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes = %v, want %v", changes, want)
			break
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	out := output.NewManual(24000)
	p := New(&fakeSynth{data: pcmSeconds(time.Second)}, out)

	p.Stop()
	p.Stop()
	if s, _ := p.State(); s != Idle {
		t.Fatalf("State() = %v, want idle", s)
	}

	if err := p.Play(context.Background(), "m1", "hello"); err != nil {
		t.Fatal(err)
	}
	p.Stop()
	p.Stop()
	if s, _ := p.State(); s != Idle {
		t.Errorf("State() = %v, want idle", s)
	}
	if n := len(out.Scheduled()); n != 0 {
		t.Errorf("%d buffers still scheduled after Stop", n)
	}
}

func TestPlayStopsPrevious(t *testing.T) {
	out := output.NewManual(24000)
	p := New(&fakeSynth{data: pcmSeconds(time.Second)}, out)

	if err := p.Play(context.Background(), "m1", "one"); err != nil {
		t.Fatal(err)
	}
	first := out.Scheduled()
	if len(first) != 1 {
		t.Fatalf("scheduled = %d, want 1", len(first))
	}
	if err := p.Play(context.Background(), "m2", "two"); err != nil {
		t.Fatal(err)
	}
	if !first[0].Stopped() {
		t.Error("first utterance should have been stopped")
	}
	if n := len(out.Scheduled()); n != 1 {
		t.Errorf("scheduled = %d, want exactly one audible utterance", n)
	}
	if _, id := p.State(); id != "m2" {
		t.Errorf("current message = %q, want m2", id)
	}

	// The stopped utterance must not flip the player to idle.
	time.Sleep(10 * time.Millisecond)
	if s, _ := p.State(); s != Playing {
		t.Errorf("State() = %v, want playing", s)
	}
}

func TestStopWhileLoadingDiscardsResult(t *testing.T) {
	out := output.NewManual(24000)
	synth := &fakeSynth{data: pcmSeconds(time.Second), gate: make(chan struct{})}
	p := New(synth, out)

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background(), "m1", "slow") }()
	waitState(t, p, Loading)

	p.Stop()
	if err := <-done; err != nil {
		t.Errorf("superseded Play returned %v, want nil", err)
	}
	if s, _ := p.State(); s != Idle {
		t.Errorf("State() = %v, want idle", s)
	}
	if n := len(out.Scheduled()); n != 0 {
		t.Errorf("%d buffers scheduled after Stop during loading", n)
	}
}

func TestLatePlayWins(t *testing.T) {
	out := output.NewManual(24000)
	synth := &fakeSynth{data: pcmSeconds(time.Second), gate: make(chan struct{})}
	p := New(synth, out)

	first := make(chan error, 1)
	go func() { first <- p.Play(context.Background(), "m1", "slow") }()
	waitState(t, p, Loading)

	synth.mu.Lock()
	synth.gate = nil
	synth.mu.Unlock()
	if err := p.Play(context.Background(), "m2", "fast"); err != nil {
		t.Fatal(err)
	}
	if err := <-first; err != nil {
		t.Errorf("superseded Play returned %v", err)
	}
	if s, id := p.State(); s != Playing || id != "m2" {
		t.Errorf("State() = %v %q, want playing m2", s, id)
	}
	if n := len(out.Scheduled()); n != 1 {
		t.Errorf("scheduled = %d, want 1", n)
	}
}

func TestSynthesisFailureReturnsToIdle(t *testing.T) {
	out := output.NewManual(24000)
	p := New(&fakeSynth{err: errors.New("quota")}, out)

	if err := p.Play(context.Background(), "m1", "hello"); err == nil {
		t.Error("expected error")
	}
	if s, _ := p.State(); s != Idle {
		t.Errorf("State() = %v, want idle", s)
	}
}

func TestDecodeFailureReturnsToIdle(t *testing.T) {
	out := output.NewManual(24000)
	p := New(&fakeSynth{data: []byte{1, 2, 3}}, out)

	if err := p.Play(context.Background(), "m1", "hello"); err == nil {
		t.Error("expected decode error")
	}
	if s, _ := p.State(); s != Idle {
		t.Errorf("State() = %v, want idle", s)
	}
	if n := len(out.Scheduled()); n != 0 {
		t.Errorf("%d buffers scheduled after decode failure", n)
	}
}

func TestEmptyAudioReturnsToIdle(t *testing.T) {
	out := output.NewManual(24000)
	p := New(&fakeSynth{data: []byte{}}, out)

	var mu sync.Mutex
	var states []State
	p.OnChange = func(s State, _ string) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}
	if err := p.Play(context.Background(), "m1", "hello"); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Play error = %v, want ErrNoAudio", err)
	}
	if n := len(out.Scheduled()); n != 0 {
		t.Errorf("%d buffers scheduled for empty audio", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if want := []State{Loading, Idle}; !slices.Equal(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Loading.String() != "loading" || Playing.String() != "playing" {
		t.Error("State.String mismatch")
	}
}
