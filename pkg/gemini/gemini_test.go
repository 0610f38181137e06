package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"

	"github.com/vibeoracle/oracle/pkg/voice"
)

func TestUnavailableClient(t *testing.T) {
	c, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Available() {
		t.Fatal("client without API key should be unavailable")
	}
	for _, err := range c.StreamText(context.Background(), &TextRequest{Prompt: "hi"}) {
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("StreamText error = %v, want ErrUnavailable", err)
		}
	}
	if _, err := c.Synthesize(context.Background(), "hi", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Synthesize error = %v, want ErrUnavailable", err)
	}
	if _, err := c.Dial(context.Background(), &voice.SessionConfig{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Dial error = %v, want ErrUnavailable", err)
	}
	if Unavailable().Available() {
		t.Error("Unavailable() should not be available")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Unavailable().Config()
	if cfg.TextModel != DefaultTextModel || cfg.SpeechModel != DefaultSpeechModel || cfg.LiveModel != DefaultLiveModel || cfg.Voice != DefaultVoice {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	c, _ := New(context.Background(), Config{Voice: "Puck"})
	if c.Config().Voice != "Puck" {
		t.Errorf("Voice = %q, want Puck", c.Config().Voice)
	}
}

func TestIsInvalidKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized", genai.APIError{Code: 401}, true},
		{"bad request with key message", fmt.Errorf("wrap: %w", genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}), true},
		{"plain message", errors.New("API key not valid"), true},
		{"server error", genai.APIError{Code: 500, Message: "internal"}, false},
		{"other", errors.New("timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalidKey(tt.err); got != tt.want {
				t.Errorf("IsInvalidKey(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestLiveConvertAccumulatesTranscripts(t *testing.T) {
	lt := &liveTransport{}

	ev := lt.convert(&genai.LiveServerContent{InputTranscription: &genai.Transcription{Text: "he"}})
	if ev.InputTranscript == nil || ev.InputTranscript.Text != "he" || ev.InputTranscript.Final {
		t.Fatalf("first fragment = %+v", ev.InputTranscript)
	}
	ev = lt.convert(&genai.LiveServerContent{InputTranscription: &genai.Transcription{Text: "llo"}})
	if ev.InputTranscript.Text != "hello" {
		t.Errorf("accumulated = %q, want hello", ev.InputTranscript.Text)
	}

	// Model output closes the seeker's entry.
	ev = lt.convert(&genai.LiveServerContent{
		OutputTranscription: &genai.Transcription{Text: "Greetings"},
		ModelTurn: &genai.Content{Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: []byte{1, 0}, MIMEType: "audio/pcm;rate=24000"}},
		}},
	})
	if ev.InputTranscript == nil || !ev.InputTranscript.Final || ev.InputTranscript.Text != "hello" {
		t.Errorf("input not closed: %+v", ev.InputTranscript)
	}
	if ev.OutputTranscript == nil || ev.OutputTranscript.Text != "Greetings" || ev.OutputTranscript.Final {
		t.Errorf("output = %+v", ev.OutputTranscript)
	}
	if len(ev.Audio) != 1 {
		t.Errorf("audio fragments = %d, want 1", len(ev.Audio))
	}

	ev = lt.convert(&genai.LiveServerContent{OutputTranscription: &genai.Transcription{Text: " again"}, TurnComplete: true})
	if ev.OutputTranscript == nil || !ev.OutputTranscript.Final || ev.OutputTranscript.Text != "Greetings again" {
		t.Errorf("output at turn end = %+v", ev.OutputTranscript)
	}

	ev = lt.convert(&genai.LiveServerContent{OutputTranscription: &genai.Transcription{Text: "New"}})
	if ev.OutputTranscript.Text != "New" || ev.OutputTranscript.Final {
		t.Errorf("new entry = %+v", ev.OutputTranscript)
	}
}

func TestLiveConvertFinishedFlag(t *testing.T) {
	lt := &liveTransport{}
	ev := lt.convert(&genai.LiveServerContent{InputTranscription: &genai.Transcription{Text: "yes", Finished: true}})
	if !ev.InputTranscript.Final || ev.InputTranscript.Text != "yes" {
		t.Errorf("fragment = %+v", ev.InputTranscript)
	}
}

func TestLiveConvertSkipsEmpty(t *testing.T) {
	lt := &liveTransport{}
	if ev := lt.convert(nil); ev != nil {
		t.Errorf("nil content produced %+v", ev)
	}
	if ev := lt.convert(&genai.LiveServerContent{GenerationComplete: true}); ev != nil {
		t.Errorf("generation complete produced %+v", ev)
	}
	ev := lt.convert(&genai.LiveServerContent{Interrupted: true})
	if ev == nil || !ev.Interrupted {
		t.Errorf("interruption lost: %+v", ev)
	}
}
