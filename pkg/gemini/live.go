package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/vibeoracle/oracle/pkg/voice"
)

var _ voice.Dialer = (*Client)(nil)

// Dial opens a live voice session with audio responses and transcription
// in both directions.
func (c *Client) Dial(ctx context.Context, cfg *voice.SessionConfig) (voice.Transport, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}
	v := cfg.Voice
	if v == "" {
		v = c.cfg.Voice
	}
	lc := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		SpeechConfig:             speechConfig(v),
	}
	if cfg.SystemInstruction != "" {
		lc.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	session, err := c.client.Live.Connect(ctx, c.cfg.LiveModel, lc)
	if err != nil {
		return nil, fmt.Errorf("gemini: live connect: %w", err)
	}
	slog.Debug("gemini/live: connected", "model", c.cfg.LiveModel)
	return &liveTransport{session: session}, nil
}

// liveTransport adapts a genai live session to voice.Transport. The server
// sends transcripts as increments; they are accumulated per direction so
// that each emitted fragment carries the full text of the current entry.
type liveTransport struct {
	session *genai.Session

	sendMu sync.Mutex

	input  transcriptAccumulator
	output transcriptAccumulator

	closeOnce sync.Once
	closeErr  error
}

func (t *liveTransport) SendAudio(b voice.Blob) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: b.Data, MIMEType: b.MIMEType},
	})
}

func (t *liveTransport) Receive() (*voice.ServerEvent, error) {
	for {
		msg, err := t.session.Receive()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, voice.ErrClosed
			}
			return nil, err
		}
		if msg.GoAway != nil {
			slog.Info("gemini/live: server going away", "time_left", msg.GoAway.TimeLeft)
		}
		if ev := t.convert(msg.ServerContent); ev != nil {
			return ev, nil
		}
	}
}

func (t *liveTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.session.Close()
	})
	return t.closeErr
}

func (t *liveTransport) convert(sc *genai.LiveServerContent) *voice.ServerEvent {
	if sc == nil {
		return nil
	}
	ev := &voice.ServerEvent{
		Interrupted:  sc.Interrupted,
		TurnComplete: sc.TurnComplete,
	}
	if tr := sc.InputTranscription; tr != nil {
		ev.InputTranscript = t.input.add(tr.Text, tr.Finished)
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				ev.Audio = append(ev.Audio, p.InlineData.Data)
			}
		}
	}
	if tr := sc.OutputTranscription; tr != nil {
		ev.OutputTranscript = t.output.add(tr.Text, tr.Finished)
	}
	// The model answering closes whatever the seeker was saying.
	if ev.InputTranscript == nil && (ev.OutputTranscript != nil || len(ev.Audio) > 0) {
		ev.InputTranscript = t.input.close()
	}
	if sc.TurnComplete || sc.Interrupted {
		if ev.InputTranscript == nil {
			ev.InputTranscript = t.input.close()
		}
		if ev.OutputTranscript == nil || !ev.OutputTranscript.Final {
			if f := t.output.close(); f != nil {
				ev.OutputTranscript = f
			}
		}
	}
	if ev.InputTranscript == nil && ev.OutputTranscript == nil && len(ev.Audio) == 0 && !ev.Interrupted && !ev.TurnComplete {
		return nil
	}
	return ev
}

type transcriptAccumulator struct {
	sb   strings.Builder
	open bool
}

func (a *transcriptAccumulator) add(text string, finished bool) *voice.Fragment {
	if text == "" && !finished {
		return nil
	}
	a.sb.WriteString(text)
	a.open = true
	if finished {
		return a.close()
	}
	return &voice.Fragment{Text: a.sb.String()}
}

func (a *transcriptAccumulator) close() *voice.Fragment {
	if !a.open {
		return nil
	}
	f := &voice.Fragment{Text: a.sb.String(), Final: true}
	a.sb.Reset()
	a.open = false
	return f
}
