package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/vibeoracle/oracle/pkg/audio/output"
	"github.com/vibeoracle/oracle/pkg/audio/pcm"
	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/conversation"
	"github.com/vibeoracle/oracle/pkg/gemini"
	"github.com/vibeoracle/oracle/pkg/playback"
)

func (s *Server) serveChat(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	defer c.close()

	ctx, cancel := context.WithCancel(r.Context())

	var player *playback.Player
	out := output.NewDevice(pcm.L16Mono24K, c.audioSink(pcm.L16Mono24K, func() string {
		_, id := player.State()
		return id
	}), output.WithPeriod(s.period()))
	defer out.Close()

	player = playback.New(s.Synth, out, playback.WithVoice(s.Voice))
	player.OnChange = func(st playback.State, id string) {
		_ = c.send(&ServerMessage{Type: TypePlayback, State: st.String(), ID: id})
	}
	defer player.Stop()

	opts := []conversation.Option{
		conversation.WithSpeaker(player),
		conversation.WithIdentity(identity(r)),
	}
	if s.Conversations != nil || s.Profiles != nil {
		opts = append(opts, conversation.WithStore(s.Conversations, s.Profiles))
	}
	conv := conversation.New(s.Assembler, opts...)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	for {
		m, err := c.read()
		if err != nil {
			if !isClosure(err) {
				slog.Debug("server/chat: read", "error", err)
			}
			return
		}
		switch m.Type {
		case TypeSetup:
			s.setup(ctx, c, conv, m)
		case TypeSend:
			text := m.Text
			wg.Go(func() {
				s.turn(c, conv, func(onUpdate func(chat.Message)) (chat.Message, error) {
					return conv.Send(ctx, text, onUpdate)
				})
			})
		case TypePalm:
			img, err := palmImage(m)
			if err != nil {
				_ = c.send(errorMessage(err))
				continue
			}
			text := m.Text
			wg.Go(func() {
				s.turn(c, conv, func(onUpdate func(chat.Message)) (chat.Message, error) {
					return conv.SendPalm(ctx, img, text, onUpdate)
				})
			})
		case TypeSpeak:
			id := m.ID
			wg.Go(func() {
				err := conv.Speak(ctx, id)
				switch {
				case errors.Is(err, conversation.ErrSpeech):
					// The player already reported idle.
					slog.Debug("server/chat: speak", "id", id, "error", err)
				case err != nil:
					_ = c.send(errorMessage(err))
				}
			})
		case TypeStop:
			conv.StopSpeaking()
		case TypeReset:
			conv.Reset()
			s.ready(c, conv)
		default:
			_ = c.send(errorMessage(fmt.Errorf("unknown message type %q", m.Type)))
		}
	}
}

// setup applies the seeker's choices and starts a new reading with its
// greeting. Without a profile in the frame the saved one is restored.
func (s *Server) setup(ctx context.Context, c *conn, conv *conversation.Conversation, m *ClientMessage) {
	if m.Language != "" {
		if err := conv.SetLanguage(m.Language); err != nil {
			_ = c.send(errorMessage(err))
			return
		}
	}
	if m.Technique != "" {
		if err := conv.SetTechnique(m.Technique); err != nil {
			_ = c.send(errorMessage(err))
			return
		}
	}
	if m.Profile != nil {
		if err := conv.SetProfile(ctx, *m.Profile); err != nil {
			slog.Warn("server/chat: save profile", "error", err)
		}
	} else {
		conv.LoadProfile(ctx)
	}
	conv.Begin()
	s.ready(c, conv)
}

func (s *Server) ready(c *conn, conv *conversation.Conversation) {
	_ = c.send(&ServerMessage{Type: TypeReady, Messages: conv.Messages(), ID: conv.ID()})
}

func (s *Server) turn(c *conn, conv *conversation.Conversation, run func(func(chat.Message)) (chat.Message, error)) {
	_, err := run(func(m chat.Message) {
		_ = c.send(&ServerMessage{Type: TypeMessage, Message: &m})
	})
	if errors.Is(err, conversation.ErrReset) {
		return
	}
	if err != nil {
		if errors.Is(err, chat.ErrTurnOpen) {
			err = errors.New("a reply is still streaming")
		}
		_ = c.send(errorMessage(err))
		return
	}
	_ = c.send(&ServerMessage{
		Type:        TypeSuggestions,
		Suggestions: conv.Suggestions(),
		OfferSave:   conv.ShouldOfferSave(),
		ID:          conv.ID(),
	})
}

func palmImage(m *ClientMessage) (gemini.Image, error) {
	data, err := pcm.DecodeBase64(m.Image)
	if err != nil {
		return gemini.Image{}, fmt.Errorf("palm image: %w", err)
	}
	mime := m.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	if !strings.HasPrefix(mime, "image/") {
		return gemini.Image{}, fmt.Errorf("palm image: unsupported type %q", mime)
	}
	return gemini.Image{Data: data, MIMEType: mime}, nil
}
