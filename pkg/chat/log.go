package chat

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrTurnOpen is returned when a model message is already streaming.
	ErrTurnOpen = errors.New("chat: a model message is already open")

	// ErrNotOpen is returned when patching a message that is not the open one.
	ErrNotOpen = errors.New("chat: message is not open")

	// ErrNotFound is returned for unknown message ids.
	ErrNotFound = errors.New("chat: message not found")
)

// Final is what a finished model message is frozen with.
type Final struct {
	Content     string
	Buttons     map[string]string
	Suggestions []string
	Palmistry   *Palmistry
}

// Log is an append-only message log patched by id. Only the single open
// model message may change; everything else is immutable once appended. A
// Log is safe for concurrent use.
type Log struct {
	mu     sync.RWMutex
	msgs   []Message
	openID string
}

// Add appends a complete, immutable message.
func (l *Log) Add(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m.Clone())
}

// Open appends an empty model message and marks it as the one open entry.
func (l *Log) Open() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.openID != "" {
		return "", ErrTurnOpen
	}
	m := NewMessage(RoleModel, "")
	l.msgs = append(l.msgs, m)
	l.openID = m.ID
	return m.ID, nil
}

// OpenID returns the id of the open message, or "" when none is open.
func (l *Log) OpenID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.openID
}

// Append adds delta to the content of the open message.
func (l *Log) Append(id, delta string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, err := l.openIndexLocked(id)
	if err != nil {
		return err
	}
	l.msgs[i].Content += delta
	return nil
}

// SetContent replaces the content of the open message, for example with the
// visible part of a partially streamed reply.
func (l *Log) SetContent(id, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, err := l.openIndexLocked(id)
	if err != nil {
		return err
	}
	l.msgs[i].Content = content
	return nil
}

// Finalize freezes the open message with its final content and directives.
func (l *Log) Finalize(id string, f Final) (Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, err := l.openIndexLocked(id)
	if err != nil {
		return Message{}, err
	}
	m := &l.msgs[i]
	*m = Message{
		ID:          m.ID,
		Role:        m.Role,
		Content:     f.Content,
		Buttons:     f.Buttons,
		Suggestions: f.Suggestions,
		Palmistry:   f.Palmistry,
	}.Clone()
	l.openID = ""
	return m.Clone(), nil
}

// Replace removes the open message and appends a new complete model message
// with content in its place.
func (l *Log) Replace(id, content string) (Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, err := l.openIndexLocked(id)
	if err != nil {
		return Message{}, err
	}
	l.msgs = slices.Delete(l.msgs, i, i+1)
	m := NewMessage(RoleModel, content)
	l.msgs = append(l.msgs, m)
	l.openID = ""
	return m.Clone(), nil
}

// Get returns a copy of the message with the given id.
func (l *Log) Get(id string) (Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.msgs {
		if m.ID == id {
			return m.Clone(), nil
		}
	}
	return Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Messages returns a snapshot of the log.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = m.Clone()
	}
	return out
}

// Last returns the last message, if any.
func (l *Log) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.msgs) == 0 {
		return Message{}, false
	}
	return l.msgs[len(l.msgs)-1].Clone(), true
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Reset clears the log.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
	l.openID = ""
}

func (l *Log) openIndexLocked(id string) (int, error) {
	if id == "" || id != l.openID {
		return 0, fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].ID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
}
