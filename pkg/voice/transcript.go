package voice

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/vibeoracle/oracle/pkg/chat"
)

// Transcript is one reconciled utterance of a voice session.
type Transcript struct {
	ID    string    `json:"id"`
	Role  chat.Role `json:"role"`
	Text  string    `json:"text"`
	Final bool      `json:"isFinal"`
}

// Transcripts reconciles streamed transcript fragments into entries. A
// non-final fragment replaces the open entry of its role; a final fragment
// closes it, and the next fragment of that role starts a new entry.
type Transcripts struct {
	mu      sync.Mutex
	entries []Transcript
	open    map[chat.Role]int
}

// Apply folds f into the transcript of role and returns the updated entry.
func (t *Transcripts) Apply(role chat.Role, f Fragment) Transcript {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == nil {
		t.open = make(map[chat.Role]int)
	}
	i, ok := t.open[role]
	if !ok {
		t.entries = append(t.entries, Transcript{ID: uuid.NewString(), Role: role})
		i = len(t.entries) - 1
	}
	e := &t.entries[i]
	e.Text = f.Text
	e.Final = f.Final
	if f.Final {
		delete(t.open, role)
	} else {
		t.open[role] = i
	}
	return *e
}

// Close finalizes the open entry of role, if any.
func (t *Transcripts) Close(role chat.Role) (Transcript, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.open[role]
	if !ok {
		return Transcript{}, false
	}
	delete(t.open, role)
	t.entries[i].Final = true
	return t.entries[i], true
}

// Entries returns the transcript in utterance order.
func (t *Transcripts) Entries() []Transcript {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}

// Len returns the number of entries.
func (t *Transcripts) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
