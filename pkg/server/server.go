// Package server bridges browsers to the oracle over websockets.
//
// Two endpoints are served:
//
//   - /ws/chat: one reading per socket. The browser sends setup, send, palm,
//     speak, stop and reset frames and receives every streamed update of the
//     model message, playback state changes and the spoken audio.
//   - /ws/voice: one live voice session per socket. The browser streams
//     microphone audio as base64 PCM16 at 16 kHz and receives status,
//     transcripts and the reply audio at 24 kHz.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibeoracle/oracle/pkg/conversation"
	"github.com/vibeoracle/oracle/pkg/playback"
	"github.com/vibeoracle/oracle/pkg/reply"
	"github.com/vibeoracle/oracle/pkg/store"
	"github.com/vibeoracle/oracle/pkg/voice"
)

const maxMessageBytes = 8 << 20

// Server holds what the websocket sessions are built from. Nil stores
// disable persistence.
type Server struct {
	Assembler *reply.Assembler
	Synth     playback.Synthesizer
	Dialer    voice.Dialer

	// Voice is the prebuilt voice for speech and live sessions.
	Voice string

	Conversations *store.Conversations
	Profiles      *store.Profiles

	// Period is the audio render period. Defaults to 20ms.
	Period time.Duration

	upgrader websocket.Upgrader
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/chat", s.serveChat)
	mux.HandleFunc("GET /ws/voice", s.serveVoice)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server: shutdown", "error", err)
		}
	})
	defer stop()

	slog.Info("server: listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*conn, bool) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("server: upgrade failed", "path", r.URL.Path, "error", err)
		return nil, false
	}
	ws.SetReadLimit(maxMessageBytes)
	return newConn(ws), true
}

func (s *Server) period() time.Duration {
	if s.Period > 0 {
		return s.Period
	}
	return 20 * time.Millisecond
}

// identity reads the signed-in user from the "user" query parameter. The
// bridge trusts its caller; authentication belongs in front of it.
func identity(r *http.Request) conversation.Identity {
	if uid := r.URL.Query().Get("user"); uid != "" {
		return conversation.SignedIn(uid)
	}
	return conversation.Guest{}
}

func isClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed)
}
