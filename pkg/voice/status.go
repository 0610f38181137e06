package voice

import "github.com/vibeoracle/oracle/pkg/oracle"

// Status is the displayed state of a voice session.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusListening
	StatusSpeaking
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusListening:
		return "listening"
	case StatusSpeaking:
		return "speaking"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Label returns the localized status line shown to the seeker.
func (s Status) Label(lang string) string {
	if l, ok := oracle.Text(lang).Status[s.String()]; ok {
		return l
	}
	return s.String()
}

// active reports whether a session holds resources in this state.
func (s Status) active() bool {
	return s == StatusConnecting || s == StatusListening || s == StatusSpeaking
}
