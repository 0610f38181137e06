// Package oracle holds the domain vocabulary of the Vibe Oracle: divination
// techniques, supported languages, the seeker's profile, localized strings
// and the prompts sent to the model.
package oracle

import (
	"fmt"
	"slices"
)

// TechniqueID identifies a divination technique.
type TechniqueID string

const (
	VedicAstrology TechniqueID = "vedic_astrology"
	Numerology     TechniqueID = "numerology"
	Tarot          TechniqueID = "tarot"
	Palmistry      TechniqueID = "palmistry"
)

// Technique is one divination method offered to the seeker.
type Technique struct {
	ID          TechniqueID `json:"id" yaml:"id" msgpack:"id"`
	Name        string      `json:"name" yaml:"name" msgpack:"name"`
	Description string      `json:"description" yaml:"description" msgpack:"description"`
	Enabled     bool        `json:"enabled" yaml:"enabled" msgpack:"enabled"`
}

var techniques = []Technique{
	{
		ID:          VedicAstrology,
		Name:        "Vedic Astrology",
		Description: "Ancient Indian system of astrology to understand planetary influences on your life.",
		Enabled:     true,
	},
	{
		ID:          Numerology,
		Name:        "Numerology",
		Description: "Explore the mystical relationship between numbers and life events based on your birth date.",
		Enabled:     true,
	},
	{
		ID:          Tarot,
		Name:        "Tarot Reading",
		Description: "Algorithmic Tarot-style prediction for insights into your past, present, and future.",
		Enabled:     true,
	},
	{
		ID:          Palmistry,
		Name:        "Palmistry",
		Description: "Upload a photo of your palm to receive a personalized reading of your life lines and mounts.",
		Enabled:     true,
	},
}

// Techniques returns the technique catalogue in display order.
func Techniques() []Technique {
	return slices.Clone(techniques)
}

// LookupTechnique returns the technique with the given id.
func LookupTechnique(id TechniqueID) (Technique, error) {
	for _, t := range techniques {
		if t.ID == id {
			return t, nil
		}
	}
	return Technique{}, fmt.Errorf("oracle: unknown technique %q", id)
}

// Language is a supported reply language.
type Language struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

var languages = []Language{
	{"en", "English"},
	{"hi", "Hindi (हिन्दी)"},
	{"es", "Spanish (Español)"},
	{"fr", "French (Français)"},
	{"mr", "Marathi (मराठी)"},
	{"ta", "Tamil (தமிழ்)"},
	{"te", "Telugu (తెలుగు)"},
	{"bn", "Bengali (বাংলা)"},
	{"gu", "Gujarati (ગુજરાતી)"},
	{"kn", "Kannada (ಕನ್ನಡ)"},
	{"ml", "Malayalam (മലയാളം)"},
	{"or", "Odia (ଓଡ଼ିଆ)"},
}

// Languages returns the supported languages in display order.
func Languages() []Language {
	return slices.Clone(languages)
}

// IsLanguage reports whether code is a supported language.
func IsLanguage(code string) bool {
	return slices.ContainsFunc(languages, func(l Language) bool { return l.Code == code })
}

// Profile is the seeker's personal data used to ground readings.
type Profile struct {
	Name     string `json:"name" yaml:"name" msgpack:"name"`
	DOB      string `json:"dob" yaml:"dob" msgpack:"dob"`
	TOB      string `json:"tob" yaml:"tob" msgpack:"tob"`
	POB      string `json:"pob" yaml:"pob" msgpack:"pob"`
	Language string `json:"language,omitempty" yaml:"language,omitempty" msgpack:"language,omitempty"`
}

// Complete reports whether all birth details are present.
func (p *Profile) Complete() bool {
	return p.Name != "" && p.DOB != "" && p.TOB != "" && p.POB != ""
}

// DisplayName returns the seeker's name, or "Seeker" when unknown.
func (p *Profile) DisplayName() string {
	if p == nil || p.Name == "" {
		return "Seeker"
	}
	return p.Name
}
