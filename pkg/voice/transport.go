package voice

import (
	"context"
	"errors"
)

// ErrClosed is returned by Transport.Receive when the server ended the
// session normally.
var ErrClosed = errors.New("voice: session closed")

// SessionConfig is what a live session is opened with. Response modality is
// always audio, and transcription is requested in both directions.
type SessionConfig struct {
	SystemInstruction string
	Voice             string

	// InputRate is the sample rate of frames sent to the server.
	InputRate int
	// OutputRate is the sample rate of audio received from the server.
	OutputRate int
}

// Blob is one realtime input frame. Data is raw PCM; transports encode it
// as base64 on the wire.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Fragment is a piece of a streamed transcript.
type Fragment struct {
	Text  string
	Final bool
}

// ServerEvent is one message received from a live session.
type ServerEvent struct {
	InputTranscript  *Fragment
	OutputTranscript *Fragment

	// Audio holds inline PCM fragments at the session output rate.
	Audio [][]byte

	// Interrupted reports that the seeker spoke over the model and queued
	// audio should be dropped.
	Interrupted  bool
	TurnComplete bool
}

// Transport is an open bidirectional live session.
type Transport interface {
	SendAudio(Blob) error

	// Receive blocks until the next server event. It returns ErrClosed when
	// the server closed the session normally.
	Receive() (*ServerEvent, error)

	Close() error
}

// Dialer opens live sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg *SessionConfig) (Transport, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, cfg *SessionConfig) (Transport, error)

func (f DialFunc) Dial(ctx context.Context, cfg *SessionConfig) (Transport, error) {
	return f(ctx, cfg)
}
