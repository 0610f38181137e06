package reply

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Directive markers appended by the model after the visible reply.
const (
	MarkerButtons     = "[BUTTONS]"
	MarkerSuggestions = "[SUGGESTIONS]"
	MarkerOverlay     = "[OVERLAY]"
)

var markers = []string{MarkerButtons, MarkerSuggestions, MarkerOverlay}

// Directives are the structured parts of a reply. Nil fields are absent.
type Directives struct {
	Buttons     map[string]string
	Suggestions []string
	Overlay     string
}

// ParseDirectives splits a completed reply into its visible text and its
// directives. Blocks may appear in any order. A payload runs to the next
// marker or the end of text and its first JSON value is decoded, so trailing
// prose after the value is ignored. A malformed payload is dropped but its
// block is still removed from the visible text.
func ParseDirectives(full string) (string, Directives) {
	var d Directives
	visible, blocks := splitBlocks(full)
	for _, b := range blocks {
		switch b.marker {
		case MarkerButtons:
			var buttons map[string]string
			if err := decodeFirst(b.payload, &buttons); err != nil || buttons == nil {
				slog.Warn("reply: malformed buttons directive", "payload", truncate(b.payload, 120), "error", err)
				continue
			}
			d.Buttons = buttons
		case MarkerSuggestions:
			var suggestions []string
			if err := decodeFirst(b.payload, &suggestions); err != nil || suggestions == nil {
				slog.Warn("reply: malformed suggestions directive", "payload", truncate(b.payload, 120), "error", err)
				continue
			}
			d.Suggestions = suggestions
		case MarkerOverlay:
			overlay, ok := svgElement(b.payload)
			if !ok {
				slog.Warn("reply: malformed overlay directive", "payload", truncate(b.payload, 120))
				continue
			}
			d.Overlay = overlay
		}
	}
	return strings.TrimSpace(visible), d
}

// Visible returns the part of a partially streamed reply that should be
// shown: the text before the first directive marker, including a marker
// that has only partially arrived.
func Visible(partial string) string {
	cut := len(partial)
	if i := firstMarker(partial); i >= 0 {
		cut = i
	} else if j := strings.LastIndexByte(partial, '['); j >= 0 {
		// Hide a trailing "[BUT" until it is known not to be a marker.
		tail := partial[j:]
		for _, m := range markers {
			if strings.HasPrefix(m, tail) {
				cut = j
				break
			}
		}
	}
	return strings.TrimRight(partial[:cut], " \t\r\n")
}

type block struct {
	marker  string
	payload string
}

func splitBlocks(s string) (string, []block) {
	start := firstMarker(s)
	if start < 0 {
		return s, nil
	}
	var blocks []block
	rest := s[start:]
	for rest != "" {
		m := markerAt(rest)
		rest = rest[len(m):]
		end := len(rest)
		if i := firstMarker(rest); i >= 0 {
			end = i
		}
		blocks = append(blocks, block{marker: m, payload: strings.TrimSpace(rest[:end])})
		rest = rest[end:]
	}
	return s[:start], blocks
}

func firstMarker(s string) int {
	first := -1
	for _, m := range markers {
		if i := strings.Index(s, m); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	return first
}

func markerAt(s string) string {
	for _, m := range markers {
		if strings.HasPrefix(s, m) {
			return m
		}
	}
	return ""
}

func decodeFirst(payload string, v any) error {
	return json.NewDecoder(strings.NewReader(payload)).Decode(v)
}

func svgElement(payload string) (string, bool) {
	if !strings.HasPrefix(payload, "<svg") {
		return "", false
	}
	end := strings.Index(payload, "</svg>")
	if end < 0 {
		return "", false
	}
	return payload[:end+len("</svg>")], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
