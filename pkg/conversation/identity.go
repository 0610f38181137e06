package conversation

// Identity reports who is using the oracle.
type Identity interface {
	// CurrentUser returns the signed-in user id, or false for a guest.
	CurrentUser() (uid string, ok bool)
}

// Guest is the identity of a seeker who has not signed in.
type Guest struct{}

func (Guest) CurrentUser() (string, bool) { return "", false }

// SignedIn is the identity of a signed-in user.
type SignedIn string

func (s SignedIn) CurrentUser() (string, bool) { return string(s), s != "" }
