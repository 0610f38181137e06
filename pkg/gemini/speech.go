package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Synthesize renders text as speech and returns raw little-endian 16-bit
// mono PCM at 24 kHz. An empty voice uses the configured voice.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}
	if voice == "" {
		voice = c.cfg.Voice
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.SpeechModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{string(genai.ModalityAudio)},
			SpeechConfig:       speechConfig(voice),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: synthesize: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData.Data, nil
			}
		}
	}
	return nil, ErrNoAudio
}

func speechConfig(voice string) *genai.SpeechConfig {
	if voice == "" {
		return nil
	}
	return &genai.SpeechConfig{
		VoiceConfig: &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
		},
	}
}
