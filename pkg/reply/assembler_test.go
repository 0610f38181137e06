package reply

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/gemini"
	"github.com/vibeoracle/oracle/pkg/oracle"
)

type fakeStreamer struct {
	chunks []string
	err    error
	calls  int
	last   *gemini.TextRequest
}

func (f *fakeStreamer) StreamText(_ context.Context, req *gemini.TextRequest) iter.Seq2[string, error] {
	f.calls++
	f.last = req
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func newTurn(lang string) *Turn {
	tech, _ := oracle.LookupTechnique(oracle.Tarot)
	q := chat.NewMessage(chat.RoleUser, "Will I travel?")
	return &Turn{
		Profile:   oracle.Profile{Name: "Asha", DOB: "1990-01-01", TOB: "06:30", POB: "Pune"},
		Technique: tech,
		Language:  lang,
		History:   []chat.Message{chat.NewMessage(chat.RoleModel, "Greetings"), q},
		Question:  q.Content,
	}
}

func fixedNow() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }

func TestAssembleForwardsChunksInOrder(t *testing.T) {
	s := &fakeStreamer{chunks: []string{"The ", "cards ", "", "speak.", `[BUTTONS]{"a":"A"}`, `[SUGGESTIONS]["x","y"]`}}
	a := &Assembler{Streamer: s, Now: fixedNow}

	var got []string
	res := a.Assemble(context.Background(), newTurn("en"), func(d string) { got = append(got, d) })

	if res.Outcome != Completed {
		t.Fatalf("Outcome = %v", res.Outcome)
	}
	if strings.Join(got, "") != res.Raw {
		t.Errorf("concatenated chunks %q != raw %q", strings.Join(got, ""), res.Raw)
	}
	if slices.Contains(got, "") {
		t.Error("empty deltas should not be forwarded")
	}
	if res.ReplyText != "The cards speak." {
		t.Errorf("ReplyText = %q", res.ReplyText)
	}
	if res.Buttons["a"] != "A" || !slices.Equal(res.Suggestions, []string{"x", "y"}) {
		t.Errorf("directives = %v %v", res.Buttons, res.Suggestions)
	}
	if res.Palmistry != nil {
		t.Error("text turn should not carry palmistry")
	}

	final := res.Final()
	if final.Content != res.ReplyText || final.Buttons["a"] != "A" {
		t.Errorf("Final() = %+v", final)
	}
}

func TestAssembleBuildsPrompt(t *testing.T) {
	s := &fakeStreamer{chunks: []string{"ok"}}
	a := &Assembler{Streamer: s, Now: fixedNow}
	a.Assemble(context.Background(), newTurn("en"), nil)

	if s.last == nil {
		t.Fatal("no request made")
	}
	if !strings.Contains(s.last.System, "May 1, 2026") || !strings.Contains(s.last.System, "Tarot Reading") {
		t.Error("system instruction missing date or technique")
	}
	if !strings.Contains(s.last.Prompt, "model: Greetings") || !strings.Contains(s.last.Prompt, `"Will I travel?"`) {
		t.Errorf("prompt = %q", s.last.Prompt)
	}
	if s.last.Image != nil {
		t.Error("text turn should not attach an image")
	}
}

func TestAssembleOfflineSkipsNetwork(t *testing.T) {
	s := &fakeStreamer{chunks: []string{"never"}}
	a := &Assembler{Streamer: s, Prober: ProbeFunc(func(context.Context) bool { return false })}

	called := false
	res := a.Assemble(context.Background(), newTurn("es"), func(string) { called = true })
	if res.Outcome != Offline {
		t.Errorf("Outcome = %v, want offline", res.Outcome)
	}
	if s.calls != 0 || called {
		t.Error("offline turn must not contact the model")
	}
	if res.ReplyText != oracle.Text("es").Offline {
		t.Errorf("ReplyText = %q", res.ReplyText)
	}
}

func TestAssembleStreamError(t *testing.T) {
	s := &fakeStreamer{chunks: []string{"partial "}, err: errors.New("connection reset")}
	a := &Assembler{Streamer: s}

	res := a.Assemble(context.Background(), newTurn("en"), nil)
	if res.Outcome != Failed {
		t.Fatalf("Outcome = %v, want failed", res.Outcome)
	}
	if res.ReplyText != oracle.Text("en").Fallback {
		t.Errorf("ReplyText = %q", res.ReplyText)
	}
	if res.Raw != "partial " || res.Err == nil {
		t.Errorf("Raw = %q, Err = %v", res.Raw, res.Err)
	}
}

func TestAssembleUnavailable(t *testing.T) {
	a := &Assembler{Streamer: gemini.Unavailable()}
	res := a.Assemble(context.Background(), newTurn("en"), nil)
	if res.Outcome != Unavailable {
		t.Errorf("Outcome = %v, want unavailable", res.Outcome)
	}
	if res.ReplyText != oracle.Text("en").Unavailable {
		t.Errorf("ReplyText = %q", res.ReplyText)
	}
}

func TestAssembleInvalidKey(t *testing.T) {
	s := &fakeStreamer{err: genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}}
	res := (&Assembler{Streamer: s}).Assemble(context.Background(), newTurn("en"), nil)
	if res.ReplyText != oracle.Text("en").InvalidKey {
		t.Errorf("ReplyText = %q", res.ReplyText)
	}
}

func TestAssembleCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeStreamer{err: context.Canceled}
	res := (&Assembler{Streamer: s}).Assemble(ctx, newTurn("en"), nil)
	if res.Outcome != Failed || res.ReplyText != oracle.Text("en").Interference {
		t.Errorf("result = %v %q", res.Outcome, res.ReplyText)
	}
}

func TestAssemblePalm(t *testing.T) {
	s := &fakeStreamer{chunks: []string{"Your life line is long."}}
	a := &Assembler{Streamer: s, Now: fixedNow}
	turn := newTurn("hi")
	turn.Palm = &gemini.Image{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}

	res := a.Assemble(context.Background(), turn, nil)
	if res.Palmistry == nil {
		t.Fatal("palm turn should carry palmistry")
	}
	if res.Palmistry.Image != "data:image/jpeg;base64,/9g=" {
		t.Errorf("Image = %q", res.Palmistry.Image)
	}
	if res.Palmistry.SVGOverlay != DefaultOverlay() {
		t.Error("missing overlay should fall back to the default")
	}
	hi := oracle.Text("hi")
	if res.Buttons["nextPrediction"] != hi.PalmButtons["nextPrediction"] {
		t.Errorf("buttons = %v, want localized palm buttons", res.Buttons)
	}
	if !slices.Equal(res.Suggestions, hi.PalmSuggestions) {
		t.Errorf("suggestions = %v", res.Suggestions)
	}
	if s.last.Image == nil || !strings.Contains(s.last.System, "[OVERLAY]") {
		t.Error("palm request should attach the image and ask for an overlay")
	}
}

func TestAssemblePalmOverlayFromModel(t *testing.T) {
	s := &fakeStreamer{chunks: []string{`Reading[OVERLAY]<svg viewBox="0 0 400 600"></svg>`}}
	turn := newTurn("en")
	turn.Palm = &gemini.Image{Data: []byte{1}}
	res := (&Assembler{Streamer: s}).Assemble(context.Background(), turn, nil)
	if res.Palmistry.SVGOverlay != `<svg viewBox="0 0 400 600"></svg>` {
		t.Errorf("overlay = %q", res.Palmistry.SVGOverlay)
	}
	if !strings.HasPrefix(res.Palmistry.Image, "data:image/jpeg;base64,") {
		t.Errorf("Image = %q", res.Palmistry.Image)
	}
}

func TestOutcomeString(t *testing.T) {
	if Completed.String() != "completed" || Failed.String() != "failed" || Outcome(99).String() != "unknown" {
		t.Error("Outcome.String mismatch")
	}
}
