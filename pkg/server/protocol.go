package server

import (
	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/oracle"
	"github.com/vibeoracle/oracle/pkg/voice"
)

// Client message types.
const (
	TypeSetup = "setup"
	TypeSend  = "send"
	TypePalm  = "palm"
	TypeSpeak = "speak"
	TypeStop  = "stop"
	TypeReset = "reset"
	TypeAudio = "audio"
	TypeEnd   = "end"
)

// Server message types.
const (
	TypeReady       = "ready"
	TypeMessage     = "message"
	TypeSuggestions = "suggestions"
	TypePlayback    = "playback"
	TypeStatus      = "status"
	TypeTranscript  = "transcript"
	TypeEnded       = "ended"
	TypeError       = "error"
)

// ClientMessage is a frame sent by the browser. Binary payloads are base64.
//
//	{"type":"setup","language":"hi","technique":"tarot","profile":{...}}
//	{"type":"send","text":"Will I find love?"}
//	{"type":"palm","image":"<base64>","mime":"image/jpeg","text":"..."}
//	{"type":"speak","id":"<message id>"}
//	{"type":"audio","audio":"<base64 PCM16 16kHz mono>"}
type ClientMessage struct {
	Type      string             `json:"type"`
	Language  string             `json:"language,omitempty"`
	Technique oracle.TechniqueID `json:"technique,omitempty"`
	Profile   *oracle.Profile    `json:"profile,omitempty"`
	History   []oracle.Entry     `json:"history,omitempty"`
	Text      string             `json:"text,omitempty"`
	ID        string             `json:"id,omitempty"`
	Image     string             `json:"image,omitempty"`
	MIME      string             `json:"mime,omitempty"`
	Audio     string             `json:"audio,omitempty"`
}

// ServerMessage is a frame sent to the browser.
type ServerMessage struct {
	Type        string             `json:"type"`
	Message     *chat.Message      `json:"message,omitempty"`
	Messages    []chat.Message     `json:"messages,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	OfferSave   bool               `json:"offerSave,omitempty"`
	State       string             `json:"state,omitempty"`
	ID          string             `json:"id,omitempty"`
	Status      string             `json:"status,omitempty"`
	Label       string             `json:"label,omitempty"`
	Transcript  *voice.Transcript  `json:"transcript,omitempty"`
	Transcripts []voice.Transcript `json:"transcripts,omitempty"`
	Audio       string             `json:"audio,omitempty"`
	SampleRate  int                `json:"sampleRate,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func errorMessage(err error) *ServerMessage {
	return &ServerMessage{Type: TypeError, Error: err.Error()}
}
