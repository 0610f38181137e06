package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultTextModel   = "gemini-2.5-flash"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultLiveModel   = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice       = "Kore"
)

var (
	// ErrUnavailable is returned by every call of an unconfigured client.
	ErrUnavailable = errors.New("gemini: client not configured")

	// ErrNoAudio is returned when a speech response carries no audio.
	ErrNoAudio = errors.New("gemini: response has no audio")
)

// Config configures a Client. Empty model and voice fields use the defaults.
type Config struct {
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	TextModel   string `json:"text_model,omitempty" yaml:"text_model,omitempty"`
	SpeechModel string `json:"speech_model,omitempty" yaml:"speech_model,omitempty"`
	LiveModel   string `json:"live_model,omitempty" yaml:"live_model,omitempty"`
	Voice       string `json:"voice,omitempty" yaml:"voice,omitempty"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.TextModel == "" {
		out.TextModel = DefaultTextModel
	}
	if out.SpeechModel == "" {
		out.SpeechModel = DefaultSpeechModel
	}
	if out.LiveModel == "" {
		out.LiveModel = DefaultLiveModel
	}
	if out.Voice == "" {
		out.Voice = DefaultVoice
	}
	return out
}

// Client talks to the Gemini API.
type Client struct {
	cfg    Config
	client *genai.Client
}

// New creates a client. An empty API key yields an unavailable client and no
// error.
func New(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{cfg: cfg.withDefaults()}
	if cfg.APIKey == "" {
		return c, nil
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	c.client = gc
	return c, nil
}

// Unavailable returns a client whose calls all fail with ErrUnavailable.
func Unavailable() *Client {
	return &Client{cfg: (&Config{}).withDefaults()}
}

// Available reports whether the client has credentials.
func (c *Client) Available() bool {
	return c != nil && c.client != nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// IsInvalidKey reports whether err was caused by a rejected API key.
func IsInvalidKey(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return true
		}
		if strings.Contains(apiErr.Message, "API key not valid") {
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "API key not valid")
}
