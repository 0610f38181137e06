// Package conversation owns one reading: the seeker's profile and technique,
// the chat log, reply turns, spoken playback of replies and the hand-off to
// a live voice session.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/gemini"
	"github.com/vibeoracle/oracle/pkg/oracle"
	"github.com/vibeoracle/oracle/pkg/reply"
	"github.com/vibeoracle/oracle/pkg/store"
	"github.com/vibeoracle/oracle/pkg/voice"
)

var (
	// ErrNoTechnique is returned when a turn starts before a technique is chosen.
	ErrNoTechnique = errors.New("conversation: no technique selected")

	// ErrSpeech wraps synthesis and playback failures of Speak. The speaker
	// is idle again when it is returned.
	ErrSpeech = errors.New("conversation: speech failed")

	// ErrReset is returned by a turn that was canceled by Reset or Begin. Its
	// reply is discarded.
	ErrReset = errors.New("conversation: reset during turn")
)

// Speaker plays model messages aloud.
type Speaker interface {
	Play(ctx context.Context, id, text string) error
	Stop()
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithSpeaker enables Speak.
func WithSpeaker(s Speaker) Option {
	return func(c *Conversation) { c.speaker = s }
}

// WithIdentity sets who the seeker is. Defaults to Guest.
func WithIdentity(id Identity) Option {
	return func(c *Conversation) { c.identity = id }
}

// WithStore persists conversations of signed-in users and profiles of
// everyone.
func WithStore(convs *store.Conversations, profiles *store.Profiles) Option {
	return func(c *Conversation) {
		c.convs = convs
		c.profiles = profiles
	}
}

// Conversation is one reading session.
type Conversation struct {
	assembler *reply.Assembler
	speaker   Speaker
	identity  Identity
	convs     *store.Conversations
	profiles  *store.Profiles

	log chat.Log

	mu        sync.Mutex
	profile   oracle.Profile
	technique oracle.Technique
	language  string
	chatID    string

	// turnGen is bumped by Reset and Begin; a turn started under an older
	// generation drops its result.
	turnGen    uint64
	cancelTurn context.CancelFunc
}

// New returns a conversation in English with no technique selected.
func New(a *reply.Assembler, opts ...Option) *Conversation {
	c := &Conversation{
		assembler: a,
		identity:  Guest{},
		language:  "en",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLanguage selects the reply language.
func (c *Conversation) SetLanguage(code string) error {
	if !oracle.IsLanguage(code) {
		return fmt.Errorf("conversation: unsupported language %q", code)
	}
	c.mu.Lock()
	c.language = code
	c.profile.Language = code
	c.mu.Unlock()
	return nil
}

// Language returns the selected language code.
func (c *Conversation) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// SetTechnique selects the divination technique.
func (c *Conversation) SetTechnique(id oracle.TechniqueID) error {
	t, err := oracle.LookupTechnique(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.technique = t
	c.mu.Unlock()
	return nil
}

// Technique returns the selected technique.
func (c *Conversation) Technique() oracle.Technique {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.technique
}

// Profile returns the seeker's profile.
func (c *Conversation) Profile() oracle.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

func (c *Conversation) profileOwner() string {
	if uid, ok := c.identity.CurrentUser(); ok {
		return uid
	}
	return store.GuestKey
}

// LoadProfile restores the saved profile of the current seeker. It reports
// false when nothing complete was saved.
func (c *Conversation) LoadProfile(ctx context.Context) (oracle.Profile, bool) {
	if c.profiles == nil {
		return oracle.Profile{}, false
	}
	p, err := c.profiles.Get(ctx, c.profileOwner())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("conversation: load profile", "error", err)
		}
		return oracle.Profile{}, false
	}
	if !p.Complete() {
		return oracle.Profile{}, false
	}
	c.mu.Lock()
	p.Language = c.language
	c.profile = *p
	c.mu.Unlock()
	return *p, true
}

// SetProfile sets the seeker's details and saves them for next time.
func (c *Conversation) SetProfile(ctx context.Context, p oracle.Profile) error {
	c.mu.Lock()
	p.Language = c.language
	c.profile = p
	c.mu.Unlock()

	if c.profiles == nil {
		return nil
	}
	saved := p
	saved.Language = ""
	if err := c.profiles.Put(ctx, c.profileOwner(), &saved); err != nil {
		return fmt.Errorf("conversation: save profile: %w", err)
	}
	return nil
}

// Begin starts a new reading. Every technique except palmistry opens with a
// localized greeting, which is returned.
func (c *Conversation) Begin() (chat.Message, bool) {
	c.stopSpeaking()

	c.mu.Lock()
	c.abortTurnLocked()
	c.log.Reset()
	c.chatID = ""
	t, lang, name := c.technique, c.language, c.profile.Name
	c.mu.Unlock()

	if t.ID == oracle.Palmistry {
		return chat.Message{}, false
	}
	m := chat.NewMessage(chat.RoleModel, oracle.Greeting(lang, name, t.Name))
	c.log.Add(m)
	return m, true
}

// Reset clears the history and forgets the persisted conversation id. A
// streaming reply is canceled and its turn returns ErrReset.
func (c *Conversation) Reset() {
	c.stopSpeaking()
	c.mu.Lock()
	c.abortTurnLocked()
	c.log.Reset()
	c.chatID = ""
	c.mu.Unlock()
}

func (c *Conversation) abortTurnLocked() {
	c.turnGen++
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
}

// current reports whether gen is still the live turn generation.
func (c *Conversation) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnGen == gen
}

// Messages returns a snapshot of the chat.
func (c *Conversation) Messages() []chat.Message {
	return c.log.Messages()
}

// Busy reports whether a reply is streaming.
func (c *Conversation) Busy() bool {
	return c.log.OpenID() != ""
}

// ID returns the persisted conversation id, or "" before the first saved
// turn.
func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Send asks question and streams the reply. onUpdate, if set, receives the
// model message after every delta and once more when it is final.
func (c *Conversation) Send(ctx context.Context, question string, onUpdate func(chat.Message)) (chat.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return chat.Message{}, errors.New("conversation: empty question")
	}
	return c.turn(ctx, chat.NewMessage(chat.RoleUser, question), question, nil, onUpdate)
}

// SendPalm asks for a palm reading of img.
func (c *Conversation) SendPalm(ctx context.Context, img gemini.Image, question string, onUpdate func(chat.Message)) (chat.Message, error) {
	if len(img.Data) == 0 {
		return chat.Message{}, errors.New("conversation: empty palm image")
	}
	content := strings.TrimSpace(question)
	if content == "" {
		content = "Please read my palm."
	}
	return c.turn(ctx, chat.NewMessage(chat.RoleUser, content), strings.TrimSpace(question), &img, onUpdate)
}

func (c *Conversation) turn(ctx context.Context, user chat.Message, question string, palm *gemini.Image, onUpdate func(chat.Message)) (chat.Message, error) {
	c.mu.Lock()
	if c.technique.ID == "" {
		c.mu.Unlock()
		return chat.Message{}, ErrNoTechnique
	}
	if c.log.OpenID() != "" {
		c.mu.Unlock()
		return chat.Message{}, chat.ErrTurnOpen
	}
	c.log.Add(user)
	history := c.log.Messages()
	id, err := c.log.Open()
	if err != nil {
		c.mu.Unlock()
		return chat.Message{}, err
	}
	uid, signedIn := c.identity.CurrentUser()
	if signedIn && c.chatID == "" && c.convs != nil {
		c.chatID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen := c.turnGen
	c.cancelTurn = cancel
	turn := &reply.Turn{
		Profile:   c.profile,
		Technique: c.technique,
		Language:  c.language,
		History:   history,
		Question:  question,
		Palm:      palm,
	}
	c.mu.Unlock()

	if signedIn {
		c.persist(ctx, uid)
	}

	var raw strings.Builder
	res := c.assembler.Assemble(ctx, turn, func(delta string) {
		raw.WriteString(delta)
		if !c.current(gen) {
			return
		}
		if err := c.log.SetContent(id, reply.Visible(raw.String())); err != nil {
			return
		}
		if onUpdate != nil {
			if m, err := c.log.Get(id); err == nil {
				onUpdate(m)
			}
		}
	})

	var final chat.Message
	c.mu.Lock()
	if c.turnGen != gen {
		c.mu.Unlock()
		return chat.Message{}, ErrReset
	}
	c.cancelTurn = nil
	if res.Outcome == reply.Failed {
		final, err = c.log.Replace(id, res.ReplyText)
	} else {
		final, err = c.log.Finalize(id, res.Final())
	}
	c.mu.Unlock()
	if err != nil {
		return chat.Message{}, fmt.Errorf("conversation: close turn: %w", err)
	}
	if onUpdate != nil {
		onUpdate(final)
	}
	if signedIn {
		c.persist(context.WithoutCancel(ctx), uid)
	}
	return final, nil
}

// persist upserts the conversation of a signed-in user. Failures are logged;
// the reading goes on without them.
func (c *Conversation) persist(ctx context.Context, uid string) {
	if c.convs == nil {
		return
	}
	c.mu.Lock()
	doc := &store.Conversation{
		ID:        c.chatID,
		UserID:    uid,
		Technique: c.technique.ID,
		Language:  c.language,
		Messages:  c.log.Messages(),
	}
	c.mu.Unlock()
	if doc.ID == "" {
		return
	}
	if _, err := c.convs.Upsert(ctx, doc); err != nil {
		slog.Warn("conversation: save", "id", doc.ID, "error", err)
	}
}

// Speak reads the model message id aloud, replacing whatever is playing.
func (c *Conversation) Speak(ctx context.Context, id string) error {
	if c.speaker == nil {
		return errors.New("conversation: speech is not configured")
	}
	m, err := c.log.Get(id)
	if err != nil {
		return err
	}
	if m.Role != chat.RoleModel || m.Content == "" || id == c.log.OpenID() {
		return fmt.Errorf("conversation: message %s cannot be spoken", id)
	}
	if err := c.speaker.Play(ctx, id, m.Content); err != nil {
		return fmt.Errorf("%w: %w", ErrSpeech, err)
	}
	return nil
}

// StopSpeaking halts playback. It is a no-op when nothing plays.
func (c *Conversation) StopSpeaking() {
	c.stopSpeaking()
}

func (c *Conversation) stopSpeaking() {
	if c.speaker != nil {
		c.speaker.Stop()
	}
}

// EnterVoice stops playback and returns what a live voice session continues
// from.
func (c *Conversation) EnterVoice() *voice.SessionContext {
	c.stopSpeaking()
	c.mu.Lock()
	defer c.mu.Unlock()
	return &voice.SessionContext{
		Profile:   c.profile,
		Technique: c.technique,
		Language:  c.language,
		History:   chat.Entries(c.log.Messages()),
	}
}

// Suggestions returns the follow-ups of the last model message, only while
// no reply is streaming.
func (c *Conversation) Suggestions() []string {
	if c.Busy() {
		return nil
	}
	last, ok := c.log.Last()
	if !ok || last.Role != chat.RoleModel {
		return nil
	}
	return last.Suggestions
}

// ShouldOfferSave reports whether a guest should be invited to sign in to
// keep this conversation.
func (c *Conversation) ShouldOfferSave() bool {
	if _, ok := c.identity.CurrentUser(); ok {
		return false
	}
	return c.log.Len() > 1 && !c.Busy()
}
