// Package reply assembles one streamed model reply into a decorated chat
// message: deltas are forwarded as they arrive, and the directive blocks at
// the tail of the reply are parsed off once the stream completes.
package reply

import (
	"context"
	_ "embed"
	"encoding/base64"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/gemini"
	"github.com/vibeoracle/oracle/pkg/oracle"
)

//go:embed overlay.svg
var defaultOverlay string

// DefaultOverlay is the palm line overlay used when the model does not trace
// one.
func DefaultOverlay() string { return defaultOverlay }

// TextStreamer streams reply deltas for a request.
type TextStreamer interface {
	StreamText(ctx context.Context, req *gemini.TextRequest) iter.Seq2[string, error]
}

// Turn is one request/response exchange.
type Turn struct {
	Profile   oracle.Profile
	Technique oracle.Technique
	Language  string

	// History is the conversation so far, including the new user message.
	History  []chat.Message
	Question string

	// Palm, when set, makes this a palm reading of the attached image.
	Palm *gemini.Image
}

// Outcome classifies how a turn ended.
type Outcome int

const (
	// Completed means the model reply streamed to the end.
	Completed Outcome = iota
	// Offline means no request was made because the network is down.
	Offline
	// Unavailable means the model client is not configured.
	Unavailable
	// Failed means the model call failed; any streamed text is discarded.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Offline:
		return "offline"
	case Unavailable:
		return "unavailable"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result is the assembled reply.
type Result struct {
	Outcome   Outcome
	ReplyText string

	Buttons     map[string]string
	Suggestions []string
	Palmistry   *chat.Palmistry

	// Raw is the accumulated stream before directives were stripped.
	Raw string
	// Err is the model error behind a Failed outcome.
	Err error
}

// Final converts the result into the frozen form of a chat message.
func (r *Result) Final() chat.Final {
	return chat.Final{
		Content:     r.ReplyText,
		Buttons:     r.Buttons,
		Suggestions: r.Suggestions,
		Palmistry:   r.Palmistry,
	}
}

// Assembler drives turns against a TextStreamer.
type Assembler struct {
	Streamer TextStreamer
	Prober   Prober

	// Now returns the date given to the model. Defaults to time.Now.
	Now func() time.Time
}

// Assemble runs one turn. Every non-empty delta is passed to onChunk in
// arrival order. Assemble never fails: offline, unconfigured and error
// conditions produce a localized reply text and the matching Outcome.
func (a *Assembler) Assemble(ctx context.Context, turn *Turn, onChunk func(string)) *Result {
	text := oracle.Text(turn.Language)

	prober := a.Prober
	if prober == nil {
		prober = AlwaysOnline
	}
	if !prober.Online(ctx) {
		slog.Info("reply: offline, skipping model call")
		return &Result{Outcome: Offline, ReplyText: text.Offline}
	}

	req, err := a.request(turn)
	if err != nil {
		slog.Error("reply: build request", "error", err)
		return &Result{Outcome: Failed, ReplyText: text.Fallback, Err: err}
	}

	var sb strings.Builder
	for delta, err := range a.Streamer.StreamText(ctx, req) {
		if err != nil {
			return failure(turn.Language, sb.String(), err)
		}
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onChunk != nil {
			onChunk(delta)
		}
	}
	if err := ctx.Err(); err != nil {
		return failure(turn.Language, sb.String(), err)
	}

	raw := sb.String()
	visible, d := ParseDirectives(raw)
	res := &Result{
		Outcome:     Completed,
		ReplyText:   visible,
		Buttons:     d.Buttons,
		Suggestions: d.Suggestions,
		Raw:         raw,
	}
	if turn.Palm != nil {
		res.Palmistry = &chat.Palmistry{
			Image:      dataURL(turn.Palm),
			SVGOverlay: d.Overlay,
		}
		if res.Palmistry.SVGOverlay == "" {
			res.Palmistry.SVGOverlay = defaultOverlay
		}
		if res.Buttons == nil {
			res.Buttons = text.PalmButtons
		}
		if res.Suggestions == nil {
			res.Suggestions = text.PalmSuggestions
		}
	}
	return res
}

func (a *Assembler) request(turn *Turn) (*gemini.TextRequest, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	system, err := oracle.SystemInstruction(&oracle.ReplyContext{
		Profile:   turn.Profile,
		Technique: turn.Technique,
		Language:  turn.Language,
		Now:       now(),
		Palm:      turn.Palm != nil,
	})
	if err != nil {
		return nil, err
	}
	var prompt string
	if turn.Palm != nil {
		prompt, err = oracle.PalmPrompt(turn.Question, turn.Language)
	} else {
		prompt, err = oracle.UserPrompt(chat.Entries(turn.History), turn.Question, turn.Language)
	}
	if err != nil {
		return nil, err
	}
	return &gemini.TextRequest{System: system, Prompt: prompt, Image: turn.Palm}, nil
}

func failure(lang, partial string, err error) *Result {
	text := oracle.Text(lang)
	switch {
	case errors.Is(err, gemini.ErrUnavailable):
		slog.Warn("reply: model client not configured")
		return &Result{Outcome: Unavailable, ReplyText: text.Unavailable, Raw: partial, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Warn("reply: turn interrupted", "error", err)
		return &Result{Outcome: Failed, ReplyText: text.Interference, Raw: partial, Err: err}
	case gemini.IsInvalidKey(err):
		slog.Error("reply: API key rejected", "error", err)
		return &Result{Outcome: Failed, ReplyText: text.InvalidKey, Raw: partial, Err: err}
	}
	slog.Error("reply: stream failed", "error", err, "partial_bytes", len(partial))
	return &Result{Outcome: Failed, ReplyText: text.Fallback, Raw: partial, Err: err}
}

func dataURL(img *gemini.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
