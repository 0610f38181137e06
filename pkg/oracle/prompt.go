package oracle

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"
)

//go:embed prompts/*.gotmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.gotmpl"))

// Entry is one prior message as seen by the prompts.
type Entry struct {
	Role    string // "user" or "model"
	Content string
}

const (
	summaryEntries = 4
	summaryRunes   = 200
)

// ReplyContext carries everything the reply prompts need.
type ReplyContext struct {
	Profile   Profile
	Technique Technique
	Language  string
	Now       time.Time
	Palm      bool
}

// SystemInstruction renders the persona instruction for text replies.
func SystemInstruction(rc *ReplyContext) (string, error) {
	now := rc.Now
	if now.IsZero() {
		now = time.Now()
	}
	return render("system.gotmpl", map[string]any{
		"Name":      rc.Profile.DisplayName(),
		"Profile":   rc.Profile,
		"Technique": rc.Technique,
		"Language":  rc.Language,
		"Date":      now.Format("January 2, 2006"),
		"Palm":      rc.Palm,
	})
}

// UserPrompt renders the per-turn prompt containing the conversation so far
// and the new question.
func UserPrompt(history []Entry, question, language string) (string, error) {
	return render("user.gotmpl", map[string]any{
		"History":  history,
		"Question": question,
		"Language": language,
	})
}

// PalmPrompt renders the text accompanying a palm image.
func PalmPrompt(question, language string) (string, error) {
	return render("palm.gotmpl", map[string]any{
		"Question": question,
		"Language": language,
	})
}

// VoiceInstruction renders the system instruction of a live voice session.
func VoiceInstruction(p Profile, t Technique, language string, history []Entry) (string, error) {
	name := p.DisplayName()
	return render("voice.gotmpl", map[string]any{
		"Name":      name,
		"Profile":   p,
		"Technique": t,
		"Language":  language,
		"Summary":   HistorySummary(history, name),
	})
}

// HistorySummary condenses the last four entries, each cut to 200
// characters, with the seeker's name or "Oracle" as speaker.
func HistorySummary(history []Entry, name string) string {
	if len(history) > summaryEntries {
		history = history[len(history)-summaryEntries:]
	}
	var sb strings.Builder
	for i, e := range history {
		if i > 0 {
			sb.WriteByte('\n')
		}
		speaker := "Oracle"
		if e.Role == "user" {
			speaker = name
		}
		content := e.Content
		if r := []rune(content); len(r) > summaryRunes {
			content = string(r[:summaryRunes])
		}
		fmt.Fprintf(&sb, "%s: %s...", speaker, content)
	}
	return sb.String()
}

func render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("oracle: render %s: %w", name, err)
	}
	return sb.String(), nil
}
