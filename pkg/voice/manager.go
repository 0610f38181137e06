package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/vibeoracle/oracle/pkg/audio/output"
	"github.com/vibeoracle/oracle/pkg/audio/pcm"
	"github.com/vibeoracle/oracle/pkg/audio/resampler"
	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/oracle"
)

const (
	// InputRate is the rate of audio sent to the live model.
	InputRate = 16000
	// OutputRate is the rate of audio received from the live model.
	OutputRate = 24000
	// FrameSize is the number of device samples read per capture frame.
	FrameSize = 4096
)

// ErrBusy is returned by Start while another session is running.
var ErrBusy = errors.New("voice: session already running")

// SessionContext is what a voice session continues from.
type SessionContext struct {
	Profile   oracle.Profile
	Technique oracle.Technique
	Language  string
	History   []oracle.Entry
}

// OutputFunc creates an output context rendering at sampleRate.
type OutputFunc func(sampleRate int) (output.Context, error)

// Manager runs live voice sessions: it streams the microphone to the model,
// reconciles transcripts and queues the spoken reply for gapless playback.
//
// Callbacks are invoked without internal locks held and must not block for
// long.
type Manager struct {
	dialer    Dialer
	mic       Microphone
	newOutput OutputFunc

	// Voice overrides the prebuilt voice of the model.
	Voice string

	OnStatus     func(Status)
	OnTranscript func(Transcript)
	OnEnded      func()

	mu          sync.Mutex
	status      Status
	sess        *session
	transcripts *Transcripts
}

// NewManager returns an idle manager.
func NewManager(d Dialer, mic Microphone, newOutput OutputFunc) *Manager {
	return &Manager{
		dialer:      d,
		mic:         mic,
		newOutput:   newOutput,
		transcripts: &Transcripts{},
	}
}

// Status returns the displayed session state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Transcripts returns the transcript of the current or most recent session.
func (m *Manager) Transcripts() []Transcript {
	m.mu.Lock()
	t := m.transcripts
	m.mu.Unlock()
	return t.Entries()
}

// Start opens the microphone, the output context and the live session, then
// returns once the session is listening. Canceling ctx later ends the
// session as End does.
func (m *Manager) Start(ctx context.Context, sc *SessionContext) error {
	m.mu.Lock()
	if m.status.active() {
		m.mu.Unlock()
		return ErrBusy
	}
	s := newSession(ctx)
	m.sess = s
	m.transcripts = &s.transcripts
	m.status = StatusConnecting
	cb := m.OnStatus
	m.mu.Unlock()
	if cb != nil {
		cb(StatusConnecting)
	}

	stop := context.AfterFunc(ctx, func() { m.finish(s) })
	s.track(func() { stop() })

	if err := m.connect(s, sc); err != nil {
		if s.isClosed() {
			return ErrClosed
		}
		m.fail(s, err)
		return fmt.Errorf("voice: start: %w", err)
	}
	return nil
}

// End closes the session and releases every resource. It is safe in any
// state and when no session is running.
func (m *Manager) End() {
	m.mu.Lock()
	s := m.sess
	m.mu.Unlock()
	if s != nil {
		m.finish(s)
	}
}

func (m *Manager) connect(s *session, sc *SessionContext) error {
	capture, err := m.mic.Open(s.ctx)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	if !s.track(func() { closeLogged("microphone", capture.Close) }) {
		return ErrClosed
	}
	conv, err := resampler.New(capture.SampleRate(), InputRate)
	if err != nil {
		return err
	}

	out, err := m.newOutput(OutputRate)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	if !s.track(func() { closeLogged("output", out.Close) }) {
		return ErrClosed
	}
	s.sched = newScheduler(out, func() { m.refresh(s) })
	s.track(s.sched.drain)

	instruction, err := oracle.VoiceInstruction(sc.Profile, sc.Technique, sc.Language, sc.History)
	if err != nil {
		return err
	}
	tr, err := m.dialer.Dial(s.ctx, &SessionConfig{
		SystemInstruction: instruction,
		Voice:             m.Voice,
		InputRate:         InputRate,
		OutputRate:        OutputRate,
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if !s.track(func() { closeLogged("session", tr.Close) }) {
		return ErrClosed
	}

	m.transition(s, StatusListening)
	go m.capture(s, capture, conv, tr)
	go m.receive(s, tr)
	return nil
}

func (m *Manager) capture(s *session, c Capture, conv *resampler.Converter, tr Transport) {
	frame := make([]float32, FrameSize)
	mime := pcm.L16Mono16K.MIMEType()
	for {
		n, err := c.Read(frame)
		if n > 0 {
			samples, perr := conv.Process(frame[:n])
			if perr != nil {
				m.fail(s, perr)
				return
			}
			if len(samples) > 0 {
				if serr := tr.SendAudio(Blob{Data: pcm.EncodeFloat32(samples), MIMEType: mime}); serr != nil {
					if s.ctx.Err() == nil {
						m.fail(s, fmt.Errorf("voice: send audio: %w", serr))
					}
					return
				}
			}
		}
		if err != nil {
			switch {
			case s.ctx.Err() != nil:
			case errors.Is(err, io.EOF):
				slog.Debug("voice: microphone input ended")
			default:
				m.fail(s, fmt.Errorf("voice: read microphone: %w", err))
			}
			return
		}
	}
}

func (m *Manager) receive(s *session, tr Transport) {
	for {
		ev, err := tr.Receive()
		if err != nil {
			switch {
			case s.ctx.Err() != nil:
			case errors.Is(err, ErrClosed):
				slog.Info("voice: session closed by server")
				m.finish(s)
			default:
				m.fail(s, fmt.Errorf("voice: receive: %w", err))
			}
			return
		}
		m.handle(s, ev)
	}
}

func (m *Manager) handle(s *session, ev *ServerEvent) {
	if f := ev.InputTranscript; f != nil {
		m.emit(s, s.transcripts.Apply(chat.RoleUser, *f))
	}
	if f := ev.OutputTranscript; f != nil {
		m.emit(s, s.transcripts.Apply(chat.RoleModel, *f))
	}
	if ev.Interrupted {
		s.sched.drain()
	}
	for _, data := range ev.Audio {
		buf, err := pcm.DecodeAudioData(data, OutputRate, 1)
		if err != nil {
			slog.Warn("voice: drop audio fragment", "bytes", len(data), "error", err)
			continue
		}
		if s.ctx.Err() != nil {
			return
		}
		s.sched.schedule(buf)
	}
}

func (m *Manager) emit(s *session, t Transcript) {
	m.mu.Lock()
	cb := m.OnTranscript
	current := m.sess == s && !s.isClosed()
	m.mu.Unlock()
	if current && cb != nil {
		cb(t)
	}
}

// transition moves the live session s to st.
func (m *Manager) transition(s *session, st Status) {
	m.mu.Lock()
	stale := m.sess != s || s.isClosed()
	if stale || m.status == st || m.status == StatusError {
		m.mu.Unlock()
		return
	}
	m.status = st
	cb := m.OnStatus
	m.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// refresh derives listening or speaking from the playback queue.
func (m *Manager) refresh(s *session) {
	m.mu.Lock()
	if m.sess != s || (m.status != StatusListening && m.status != StatusSpeaking) {
		m.mu.Unlock()
		return
	}
	st := StatusListening
	if s.sched.busy() {
		st = StatusSpeaking
	}
	if m.status == st {
		m.mu.Unlock()
		return
	}
	m.status = st
	cb := m.OnStatus
	m.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// fail reports err as the error status and tears s down. The session stays
// current so that End can return the manager to idle.
func (m *Manager) fail(s *session, err error) {
	m.mu.Lock()
	if m.sess != s || !m.status.active() {
		m.mu.Unlock()
		s.cleanup()
		return
	}
	m.status = StatusError
	cb := m.OnStatus
	m.mu.Unlock()

	slog.Error("voice: session failed", "error", err)
	s.cleanup()
	if cb != nil {
		cb(StatusError)
	}
}

// finish tears s down and, if it was current, returns to idle.
func (m *Manager) finish(s *session) {
	m.mu.Lock()
	current := m.sess == s
	if current {
		m.sess = nil
	}
	m.mu.Unlock()

	s.cleanup()
	if !current {
		return
	}

	m.mu.Lock()
	var cb func(Status)
	if m.sess == nil && m.status != StatusIdle {
		m.status = StatusIdle
		cb = m.OnStatus
	}
	ended := m.OnEnded
	m.mu.Unlock()
	if cb != nil {
		cb(StatusIdle)
	}
	if ended != nil {
		ended()
	}
}

// session is the set of resources held by one voice session. They are
// released together, in reverse order of acquisition, exactly once.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc

	transcripts Transcripts
	sched       *scheduler

	mu      sync.Mutex
	closers []func()
	closed  bool
}

func newSession(parent context.Context) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{ctx: ctx, cancel: cancel}
}

// track registers fn to run at cleanup. If cleanup already ran, fn runs now
// and track reports false.
func (s *session) track(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return false
	}
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
	return true
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) cleanup() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	s.cancel()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

func closeLogged(what string, close func() error) {
	if err := close(); err != nil {
		slog.Warn("voice: close "+what, "error", err)
	}
}
