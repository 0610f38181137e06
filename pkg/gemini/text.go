package gemini

import (
	"context"
	"iter"
	"log/slog"

	"google.golang.org/genai"
)

// Image is an inline image attached to a request.
type Image struct {
	Data     []byte
	MIMEType string
}

// TextRequest is one streamed reply request. The conversation history is
// part of Prompt.
type TextRequest struct {
	System string
	Prompt string
	Image  *Image
}

// StreamText streams the reply text. Each yielded string is a non-empty
// delta in arrival order. A failure is yielded once as the final element.
func (c *Client) StreamText(ctx context.Context, req *TextRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !c.Available() {
			yield("", ErrUnavailable)
			return
		}
		parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
		if req.Image != nil {
			parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
		}
		contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
		cfg := &genai.GenerateContentConfig{}
		if req.System != "" {
			cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
		}

		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.cfg.TextModel, contents, cfg) {
			if err != nil {
				slog.Debug("gemini/text: stream error", "model", c.cfg.TextModel, "error", err)
				yield("", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}
