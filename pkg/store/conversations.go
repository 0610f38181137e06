package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/oracle"
)

// Key layout:
//
//	conv:{id}                → msgpack-encoded Conversation
//	user:{uid}:conv:{id}     → empty (per-user index)

// Conversation is the persisted form of one reading.
type Conversation struct {
	ID        string             `msgpack:"id" json:"id"`
	UserID    string             `msgpack:"userId" json:"userId"`
	Technique oracle.TechniqueID `msgpack:"technique" json:"technique"`
	Language  string             `msgpack:"language,omitempty" json:"language,omitempty"`
	Profile   *oracle.Profile    `msgpack:"profile,omitempty" json:"profile,omitempty"`
	Messages  []chat.Message     `msgpack:"messages" json:"messages"`
	CreatedAt time.Time          `msgpack:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `msgpack:"updatedAt" json:"updatedAt"`
}

// Conversations stores conversation documents with merge-on-write.
type Conversations struct {
	s   Store
	now func() time.Time

	// mu serializes read-merge-write cycles.
	mu sync.Mutex
}

// NewConversations returns conversation documents kept in s.
func NewConversations(s Store) *Conversations {
	return &Conversations{s: s, now: time.Now}
}

func convKey(id string) Key { return Key{"conv", id} }

func userConvKey(uid, id string) Key { return Key{"user", uid, "conv", id} }

// Upsert merges c into the stored document with the same ID. Zero fields of
// c leave the stored values untouched; a non-nil Messages replaces the
// stored list. CreatedAt is kept from the first write and UpdatedAt is set
// to the current time. The merged document is returned.
func (cs *Conversations) Upsert(ctx context.Context, c *Conversation) (*Conversation, error) {
	if !validSegment(c.ID) {
		return nil, fmt.Errorf("%w: conversation id %q", ErrInvalidKey, c.ID)
	}
	if c.UserID != "" && !validSegment(c.UserID) {
		return nil, fmt.Errorf("%w: user id %q", ErrInvalidKey, c.UserID)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	merged, err := cs.get(ctx, c.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		merged = &Conversation{ID: c.ID, CreatedAt: c.CreatedAt}
	case err != nil:
		return nil, err
	}
	if merged.UserID != "" && c.UserID != "" && merged.UserID != c.UserID {
		return nil, fmt.Errorf("store: conversation %s belongs to another user", c.ID)
	}

	if c.UserID != "" {
		merged.UserID = c.UserID
	}
	if c.Technique != "" {
		merged.Technique = c.Technique
	}
	if c.Language != "" {
		merged.Language = c.Language
	}
	if c.Profile != nil {
		p := *c.Profile
		merged.Profile = &p
	}
	if c.Messages != nil {
		merged.Messages = make([]chat.Message, len(c.Messages))
		for i, m := range c.Messages {
			merged.Messages[i] = m.Clone()
		}
	}
	now := cs.now().UTC()
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}
	merged.UpdatedAt = now

	data, err := msgpack.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("store: encode conversation: %w", err)
	}
	ops := []Op{Put(convKey(c.ID), data)}
	if merged.UserID != "" {
		ops = append(ops, Put(userConvKey(merged.UserID, c.ID), nil))
	}
	if err := cs.s.Apply(ctx, ops...); err != nil {
		return nil, fmt.Errorf("store: write conversation: %w", err)
	}
	return merged, nil
}

// Get returns the conversation with id.
func (cs *Conversations) Get(ctx context.Context, id string) (*Conversation, error) {
	if !validSegment(id) {
		return nil, fmt.Errorf("%w: conversation id %q", ErrInvalidKey, id)
	}
	return cs.get(ctx, id)
}

func (cs *Conversations) get(ctx context.Context, id string) (*Conversation, error) {
	data, err := cs.s.Get(ctx, convKey(id))
	if err != nil {
		return nil, err
	}
	var c Conversation
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("store: decode conversation %s: %w", id, err)
	}
	return &c, nil
}

// ListByUser returns the conversations of uid, most recently updated first.
func (cs *Conversations) ListByUser(ctx context.Context, uid string) ([]*Conversation, error) {
	if !validSegment(uid) {
		return nil, fmt.Errorf("%w: user id %q", ErrInvalidKey, uid)
	}
	var out []*Conversation
	for e, err := range cs.s.Scan(ctx, Key{"user", uid, "conv"}) {
		if err != nil {
			return nil, err
		}
		id := e.Key[len(e.Key)-1]
		c, err := cs.get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b *Conversation) int {
		return cmp.Compare(b.UpdatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	})
	return out, nil
}

// Delete removes the conversation and its index entry.
func (cs *Conversations) Delete(ctx context.Context, id string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c, err := cs.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	ops := []Op{Remove(convKey(id))}
	if c.UserID != "" {
		ops = append(ops, Remove(userConvKey(c.UserID, id)))
	}
	return cs.s.Apply(ctx, ops...)
}
