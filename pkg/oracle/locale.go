package oracle

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
)

//go:embed locale.yaml
var localeYAML []byte

// Strings is the localized text the oracle emits on its own, outside of
// model replies.
type Strings struct {
	Disclaimer      string            `yaml:"disclaimer"`
	Greeting        string            `yaml:"greeting"`
	Offline         string            `yaml:"offline"`
	Loading         []string          `yaml:"loading"`
	Fallback        string            `yaml:"fallback"`
	Unavailable     string            `yaml:"unavailable"`
	InvalidKey      string            `yaml:"invalid_key"`
	Interference    string            `yaml:"interference"`
	PalmButtons     map[string]string `yaml:"palm_buttons"`
	PalmSuggestions []string          `yaml:"palm_suggestions"`
	Status          map[string]string `yaml:"status"`
}

var (
	localeOnce sync.Once
	locales    map[string]*Strings
)

func loadLocales() {
	localeOnce.Do(func() {
		if err := yaml.Unmarshal(localeYAML, &locales); err != nil {
			panic("oracle: invalid embedded locale table: " + err.Error())
		}
	})
}

// Text returns the strings for lang. Entries missing for lang are taken from
// English.
func Text(lang string) Strings {
	loadLocales()
	out := *locales["en"]
	l, ok := locales[lang]
	if !ok || lang == "en" {
		return out
	}
	if l.Disclaimer != "" {
		out.Disclaimer = l.Disclaimer
	}
	if l.Greeting != "" {
		out.Greeting = l.Greeting
	}
	if l.Offline != "" {
		out.Offline = l.Offline
	}
	if len(l.Loading) > 0 {
		out.Loading = l.Loading
	}
	if l.Fallback != "" {
		out.Fallback = l.Fallback
	}
	if l.Unavailable != "" {
		out.Unavailable = l.Unavailable
	}
	if l.InvalidKey != "" {
		out.InvalidKey = l.InvalidKey
	}
	if l.Interference != "" {
		out.Interference = l.Interference
	}
	if len(l.PalmButtons) > 0 {
		out.PalmButtons = l.PalmButtons
	}
	if len(l.PalmSuggestions) > 0 {
		out.PalmSuggestions = l.PalmSuggestions
	}
	if len(l.Status) > 0 {
		out.Status = l.Status
	}
	return out
}

// Greeting returns the opening message of a conversation.
func Greeting(lang, name, technique string) string {
	if name == "" {
		name = "Seeker"
	}
	if technique == "" {
		technique = "Ancient Arts"
	}
	r := strings.NewReplacer("{name}", name, "{technique}", technique)
	return r.Replace(Text(lang).Greeting)
}

// LoadingMessage returns the i-th rotating loading message for lang.
func LoadingMessage(lang string, i int) string {
	msgs := Text(lang).Loading
	if len(msgs) == 0 {
		return ""
	}
	return msgs[i%len(msgs)]
}
