package server

import (
	"context"
	"errors"
	"iter"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibeoracle/oracle/pkg/audio/pcm"
	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/gemini"
	"github.com/vibeoracle/oracle/pkg/oracle"
	"github.com/vibeoracle/oracle/pkg/reply"
	"github.com/vibeoracle/oracle/pkg/store"
	"github.com/vibeoracle/oracle/pkg/voice"
)

type chunkStreamer []string

func (s chunkStreamer) StreamText(ctx context.Context, _ *gemini.TextRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range s {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// gatedStreamer yields one delta, then holds the rest of the reply until
// release is closed. finished is closed when a stream returns.
type gatedStreamer struct {
	release  chan struct{}
	finished chan struct{}
	once     sync.Once
}

func (s *gatedStreamer) StreamText(context.Context, *gemini.TextRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.once.Do(func() { close(s.finished) })
		if !yield("The cards ", nil) {
			return
		}
		<-s.release
		yield("are turning.", nil)
	}
}

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("quota exceeded")
}

type toneSynth struct{}

func (toneSynth) Synthesize(context.Context, string, string) ([]byte, error) {
	return make([]byte, 24000/5*2), nil // 200ms
}

type liveTransport struct {
	events chan *voice.ServerEvent
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent int
}

func (t *liveTransport) SendAudio(voice.Blob) error {
	t.mu.Lock()
	t.sent++
	t.mu.Unlock()
	return nil
}

func (t *liveTransport) Receive() (*voice.ServerEvent, error) {
	select {
	case ev := <-t.events:
		return ev, nil
	case <-t.done:
		return nil, errors.New("closed")
	}
}

func (t *liveTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

func (t *liveTransport) frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server, path string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { ws.Close() })
	return &client{t: t, ws: ws}
}

func (c *client) send(m ClientMessage) {
	c.t.Helper()
	if err := c.ws.WriteJSON(m); err != nil {
		c.t.Fatalf("write %s: %v", m.Type, err)
	}
}

// await reads until a message of type typ arrives and returns it, failing
// on timeout.
func (c *client) await(typ string) *ServerMessage {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var m ServerMessage
		if err := c.ws.ReadJSON(&m); err != nil {
			c.t.Fatalf("waiting for %s: %v", typ, err)
		}
		if m.Type == typ {
			return &m
		}
	}
}

// next reads one message, failing on timeout.
func (c *client) next() *ServerMessage {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m ServerMessage
	if err := c.ws.ReadJSON(&m); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return &m
}

func newTestServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	s.Period = 5 * time.Millisecond
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestChatTurn(t *testing.T) {
	streamer := chunkStreamer{"The stars ", "favour you.", `[SUGGESTIONS]["When?","Why?"]`}
	srv := newTestServer(t, &Server{
		Assembler: &reply.Assembler{Streamer: streamer},
		Synth:     toneSynth{},
	})
	c := dial(t, srv, "/ws/chat")

	c.send(ClientMessage{Type: TypeSetup, Language: "en", Technique: oracle.Tarot, Profile: &oracle.Profile{Name: "Asha"}})
	ready := c.await(TypeReady)
	if len(ready.Messages) != 1 || !strings.Contains(ready.Messages[0].Content, "Asha") {
		t.Fatalf("ready messages = %+v, want greeting", ready.Messages)
	}

	c.send(ClientMessage{Type: TypeSend, Text: "Will I travel?"})
	var final *chat.Message
	for final == nil {
		m := c.await(TypeMessage)
		if strings.Contains(m.Message.Content, "[SUGGESTIONS]") {
			t.Fatalf("directive leaked into update: %q", m.Message.Content)
		}
		if len(m.Message.Suggestions) > 0 {
			final = m.Message
		}
	}
	if final.Content != "The stars favour you." {
		t.Errorf("final content = %q", final.Content)
	}
	sugg := c.await(TypeSuggestions)
	if len(sugg.Suggestions) != 2 || !sugg.OfferSave {
		t.Errorf("suggestions = %+v", sugg)
	}

	c.send(ClientMessage{Type: TypeSpeak, ID: final.ID})
	for _, want := range []string{"loading", "playing"} {
		if p := c.await(TypePlayback); p.State != want || p.ID != final.ID {
			t.Fatalf("playback = %+v, want %s", p, want)
		}
	}
	audio := c.await(TypeAudio)
	if audio.SampleRate != 24000 || audio.ID != final.ID {
		t.Errorf("audio frame = rate %d id %q", audio.SampleRate, audio.ID)
	}
	if data, err := pcm.DecodeBase64(audio.Audio); err != nil || len(data) == 0 {
		t.Errorf("audio payload: %d bytes, %v", len(data), err)
	}
	if p := c.await(TypePlayback); p.State != "idle" {
		t.Errorf("playback = %+v, want idle", p)
	}
}

func TestChatResetDuringTurn(t *testing.T) {
	streamer := &gatedStreamer{release: make(chan struct{}), finished: make(chan struct{})}
	srv := newTestServer(t, &Server{Assembler: &reply.Assembler{Streamer: streamer}})
	c := dial(t, srv, "/ws/chat")

	c.send(ClientMessage{Type: TypeSetup, Technique: oracle.Tarot, Profile: &oracle.Profile{Name: "Asha"}})
	c.await(TypeReady)
	c.send(ClientMessage{Type: TypeSend, Text: "Will I travel?"})
	c.await(TypeMessage)

	c.send(ClientMessage{Type: TypeReset})
	if r := c.await(TypeReady); len(r.Messages) != 0 {
		t.Fatalf("ready after reset has %d messages", len(r.Messages))
	}
	close(streamer.release)
	<-streamer.finished

	// The abandoned reply must leave no trace; the next turn runs cleanly.
	c.send(ClientMessage{Type: TypeSend, Text: "And love?"})
	for {
		m := c.next()
		switch m.Type {
		case TypeError:
			t.Fatalf("unexpected error frame: %q", m.Error)
		case TypeSuggestions:
			return
		}
	}
}

func TestChatSpeechFailureIsSilent(t *testing.T) {
	srv := newTestServer(t, &Server{
		Assembler: &reply.Assembler{Streamer: chunkStreamer{"ok"}},
		Synth:     failingSynth{},
	})
	c := dial(t, srv, "/ws/chat")

	c.send(ClientMessage{Type: TypeSetup, Technique: oracle.Tarot, Profile: &oracle.Profile{Name: "Asha"}})
	greeting := c.await(TypeReady).Messages[0]
	c.send(ClientMessage{Type: TypeSpeak, ID: greeting.ID})

	var states []string
	for len(states) < 2 {
		m := c.next()
		switch m.Type {
		case TypeError:
			t.Fatalf("speech failure reached the browser: %q", m.Error)
		case TypePlayback:
			states = append(states, m.State)
		}
	}
	if states[0] != "loading" || states[1] != "idle" {
		t.Errorf("playback states = %v, want [loading idle]", states)
	}

	// Nothing else is pending before the next reply.
	c.send(ClientMessage{Type: TypeReset})
	for {
		m := c.next()
		if m.Type == TypeError {
			t.Fatalf("unexpected error frame: %q", m.Error)
		}
		if m.Type == TypeReady {
			break
		}
	}
}

func TestChatErrors(t *testing.T) {
	srv := newTestServer(t, &Server{Assembler: &reply.Assembler{Streamer: chunkStreamer{"ok"}}})
	c := dial(t, srv, "/ws/chat")

	c.send(ClientMessage{Type: TypeSend, Text: "hello"})
	if m := c.await(TypeError); !strings.Contains(m.Error, "technique") {
		t.Errorf("error = %q", m.Error)
	}
	c.send(ClientMessage{Type: TypeSetup, Language: "xx"})
	if m := c.await(TypeError); !strings.Contains(m.Error, "language") {
		t.Errorf("error = %q", m.Error)
	}
	c.send(ClientMessage{Type: TypePalm, Image: "not base64!"})
	c.await(TypeError)
	c.send(ClientMessage{Type: "dance"})
	if m := c.await(TypeError); !strings.Contains(m.Error, "dance") {
		t.Errorf("error = %q", m.Error)
	}
}

func TestChatPersistsSignedIn(t *testing.T) {
	s := store.NewMemory()
	convs := store.NewConversations(s)
	srv := newTestServer(t, &Server{
		Assembler:     &reply.Assembler{Streamer: chunkStreamer{"Yes."}},
		Conversations: convs,
		Profiles:      store.NewProfiles(s),
	})
	c := dial(t, srv, "/ws/chat?user=u1")
	c.send(ClientMessage{Type: TypeSetup, Technique: oracle.Numerology})
	c.await(TypeReady)
	c.send(ClientMessage{Type: TypeSend, Text: "Lucky number?"})
	sugg := c.await(TypeSuggestions)
	if sugg.ID == "" || sugg.OfferSave {
		t.Fatalf("suggestions = %+v, want saved conversation id", sugg)
	}
	doc, err := convs.Get(context.Background(), sugg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.UserID != "u1" || len(doc.Messages) != 3 {
		t.Errorf("saved = user %q, %d messages", doc.UserID, len(doc.Messages))
	}
}

func TestVoiceSession(t *testing.T) {
	tr := &liveTransport{events: make(chan *voice.ServerEvent, 4), done: make(chan struct{})}
	cfgs := make(chan *voice.SessionConfig, 1)
	srv := newTestServer(t, &Server{
		Dialer: voice.DialFunc(func(_ context.Context, cfg *voice.SessionConfig) (voice.Transport, error) {
			cfgs <- cfg
			return tr, nil
		}),
		Voice: "Puck",
	})
	c := dial(t, srv, "/ws/voice")

	c.send(ClientMessage{
		Type:      TypeSetup,
		Language:  "en",
		Technique: oracle.VedicAstrology,
		Profile:   &oracle.Profile{Name: "Ravi"},
	})
	for {
		if st := c.await(TypeStatus); st.Status == voice.StatusListening.String() {
			break
		}
	}
	cfg := <-cfgs
	if cfg.Voice != "Puck" || !strings.Contains(cfg.SystemInstruction, "Ravi") {
		t.Errorf("session config = %+v", cfg)
	}

	frame := pcm.EncodeBase64(make([]byte, voice.FrameSize*2))
	c.send(ClientMessage{Type: TypeAudio, Audio: frame})
	c.send(ClientMessage{Type: TypeAudio, Audio: frame})

	tr.events <- &voice.ServerEvent{
		OutputTranscript: &voice.Fragment{Text: "Namaste Ravi"},
		Audio:            [][]byte{make([]byte, 24000/10*2)},
	}
	if m := c.await(TypeTranscript); m.Transcript.Text != "Namaste Ravi" || m.Transcript.Role != chat.RoleModel {
		t.Errorf("transcript = %+v", m.Transcript)
	}
	if m := c.await(TypeAudio); m.SampleRate != 24000 {
		t.Errorf("audio rate = %d", m.SampleRate)
	}

	deadline := time.Now().Add(5 * time.Second)
	for tr.frames() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := tr.frames(); n < 2 {
		t.Errorf("sent %d frames, want at least 2", n)
	}

	c.send(ClientMessage{Type: TypeEnd})
	ended := c.await(TypeEnded)
	if len(ended.Transcripts) != 1 {
		t.Errorf("ended transcripts = %+v", ended.Transcripts)
	}
	select {
	case <-tr.done:
	default:
		t.Error("transport not closed after end")
	}
}

func TestVoiceRejectsBadSetup(t *testing.T) {
	srv := newTestServer(t, &Server{})
	c := dial(t, srv, "/ws/voice")
	c.send(ClientMessage{Type: TypeAudio})
	if m := c.await(TypeError); !strings.Contains(m.Error, "setup") {
		t.Errorf("error = %q", m.Error)
	}
}

func TestVoiceDialFailure(t *testing.T) {
	srv := newTestServer(t, &Server{
		Dialer: voice.DialFunc(func(context.Context, *voice.SessionConfig) (voice.Transport, error) {
			return nil, errors.New("quota exceeded")
		}),
	})
	c := dial(t, srv, "/ws/voice")
	c.send(ClientMessage{Type: TypeSetup, Technique: oracle.Tarot})
	for {
		if st := c.await(TypeStatus); st.Status == voice.StatusError.String() {
			break
		}
	}
	if m := c.await(TypeError); !strings.Contains(m.Error, "quota exceeded") {
		t.Errorf("error = %q", m.Error)
	}
	if m := c.await(TypeEnded); len(m.Transcripts) != 0 {
		t.Errorf("ended transcripts = %+v, want none", m.Transcripts)
	}
}
