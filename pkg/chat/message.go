// Package chat models the conversation shown to the seeker: an ordered log
// of messages where at most one model message is open for streaming at a
// time.
package chat

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/vibeoracle/oracle/pkg/oracle"
)

// Role is the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Palmistry is the visual part of a palm reading.
type Palmistry struct {
	Image      string `json:"image" msgpack:"image"` // data URL
	SVGOverlay string `json:"svgOverlay,omitempty" msgpack:"svgOverlay,omitempty"`
}

// Message is one entry of the conversation.
type Message struct {
	ID          string            `json:"id" msgpack:"id"`
	Role        Role              `json:"role" msgpack:"role"`
	Content     string            `json:"content" msgpack:"content"`
	Buttons     map[string]string `json:"buttons,omitempty" msgpack:"buttons,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty" msgpack:"suggestions,omitempty"`
	Palmistry   *Palmistry        `json:"palmistryAnalysis,omitempty" msgpack:"palmistryAnalysis,omitempty"`
}

// NewMessage returns a message with a fresh id.
func NewMessage(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	m.Buttons = maps.Clone(m.Buttons)
	m.Suggestions = slices.Clone(m.Suggestions)
	if m.Palmistry != nil {
		p := *m.Palmistry
		m.Palmistry = &p
	}
	return m
}

// ButtonLabels returns the button labels ordered by action key.
func (m Message) ButtonLabels() []string {
	keys := slices.Sorted(maps.Keys(m.Buttons))
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = m.Buttons[k]
	}
	return labels
}

// Entries converts messages to the prompt representation.
func Entries(msgs []Message) []oracle.Entry {
	out := make([]oracle.Entry, len(msgs))
	for i, m := range msgs {
		out[i] = oracle.Entry{Role: string(m.Role), Content: m.Content}
	}
	return out
}
