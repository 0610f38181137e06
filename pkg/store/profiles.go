package store

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vibeoracle/oracle/pkg/oracle"
)

// GuestKey is the owner under which a guest's profile is kept.
const GuestKey = "vibeOracleGuestUserData"

// Profiles keeps one seeker profile per owner.
type Profiles struct {
	s Store
}

// NewProfiles returns profiles kept in s.
func NewProfiles(s Store) *Profiles {
	return &Profiles{s: s}
}

func profileKey(owner string) Key { return Key{"profile", owner} }

// Get returns the profile of owner, or ErrNotFound.
func (ps *Profiles) Get(ctx context.Context, owner string) (*oracle.Profile, error) {
	if !validSegment(owner) {
		return nil, fmt.Errorf("%w: owner %q", ErrInvalidKey, owner)
	}
	data, err := ps.s.Get(ctx, profileKey(owner))
	if err != nil {
		return nil, err
	}
	var p oracle.Profile
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("store: decode profile: %w", err)
	}
	return &p, nil
}

// Put replaces the profile of owner.
func (ps *Profiles) Put(ctx context.Context, owner string, p *oracle.Profile) error {
	if !validSegment(owner) {
		return fmt.Errorf("%w: owner %q", ErrInvalidKey, owner)
	}
	data, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: encode profile: %w", err)
	}
	return ps.s.Apply(ctx, Put(profileKey(owner), data))
}

// Delete removes the profile of owner.
func (ps *Profiles) Delete(ctx context.Context, owner string) error {
	if !validSegment(owner) {
		return fmt.Errorf("%w: owner %q", ErrInvalidKey, owner)
	}
	return ps.s.Apply(ctx, Remove(profileKey(owner)))
}
