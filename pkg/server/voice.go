package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vibeoracle/oracle/pkg/audio/output"
	"github.com/vibeoracle/oracle/pkg/audio/pcm"
	"github.com/vibeoracle/oracle/pkg/oracle"
	"github.com/vibeoracle/oracle/pkg/voice"
)

// serveVoice runs one live session. The first frame must be setup; audio
// frames then feed the microphone until the browser sends end, the model
// closes the session or it fails.
func (s *Server) serveVoice(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	defer c.close()

	first, err := c.read()
	if err != nil {
		return
	}
	sc, err := sessionContext(first)
	if err != nil {
		_ = c.send(errorMessage(err))
		return
	}

	pr, pw := io.Pipe()
	defer pw.Close()

	var doneOnce sync.Once
	done := make(chan struct{})
	stop := func() { doneOnce.Do(func() { close(done) }) }

	m := voice.NewManager(s.Dialer,
		&voice.ReaderMicrophone{R: pr, SampleRate: voice.InputRate},
		func(rate int) (output.Context, error) {
			f, ok := pcm.FormatFor(rate)
			if !ok {
				return nil, fmt.Errorf("unsupported output rate %d", rate)
			}
			return output.NewDevice(f, c.audioSink(f, func() string { return "" }), output.WithPeriod(s.period())), nil
		})
	m.Voice = s.Voice
	m.OnStatus = func(st voice.Status) {
		_ = c.send(&ServerMessage{Type: TypeStatus, Status: st.String(), Label: st.Label(sc.Language)})
		if st == voice.StatusError {
			stop()
		}
	}
	m.OnTranscript = func(t voice.Transcript) {
		_ = c.send(&ServerMessage{Type: TypeTranscript, Transcript: &t})
	}
	m.OnEnded = stop

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Every session the browser set up is closed with ended, including one
	// that never started.
	finish := func() {
		m.End()
		_ = c.send(&ServerMessage{Type: TypeEnded, Transcripts: m.Transcripts()})
	}
	if err := m.Start(ctx, sc); err != nil {
		_ = c.send(errorMessage(err))
		finish()
		return
	}

	go func() {
		defer stop()
		for {
			msg, err := c.read()
			if err != nil {
				if !isClosure(err) {
					slog.Debug("server/voice: read", "error", err)
				}
				return
			}
			switch msg.Type {
			case TypeAudio:
				data, err := pcm.DecodeBase64(msg.Audio)
				if err != nil {
					_ = c.send(errorMessage(err))
					continue
				}
				if _, err := pw.Write(data); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					slog.Debug("server/voice: microphone write", "error", err)
				}
			case TypeEnd:
				m.End()
				return
			default:
				_ = c.send(errorMessage(fmt.Errorf("unknown message type %q", msg.Type)))
			}
		}
	}()

	<-done
	finish()
}

func sessionContext(m *ClientMessage) (*voice.SessionContext, error) {
	if m.Type != TypeSetup {
		return nil, fmt.Errorf("first message must be %q, got %q", TypeSetup, m.Type)
	}
	lang := m.Language
	if lang == "" {
		lang = "en"
	}
	if !oracle.IsLanguage(lang) {
		return nil, fmt.Errorf("unsupported language %q", lang)
	}
	t, err := oracle.LookupTechnique(m.Technique)
	if err != nil {
		return nil, err
	}
	sc := &voice.SessionContext{Technique: t, Language: lang, History: m.History}
	if m.Profile != nil {
		sc.Profile = *m.Profile
		sc.Profile.Language = lang
	}
	return sc, nil
}
