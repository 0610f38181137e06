package reply

import (
	"slices"
	"strings"
	"testing"
)

func TestParseDirectivesEitherOrder(t *testing.T) {
	inputs := []string{
		`Hello world[BUTTONS]{"a":"A"}[SUGGESTIONS]["x","y"]`,
		`Hello world[SUGGESTIONS]["x","y"][BUTTONS]{"a":"A"}`,
		"Hello world\n[BUTTONS]{\"a\":\"A\"}\n[SUGGESTIONS][\"x\",\"y\"]\n",
	}
	for _, in := range inputs {
		text, d := ParseDirectives(in)
		if text != "Hello world" {
			t.Errorf("%q: text = %q", in, text)
		}
		if len(d.Buttons) != 1 || d.Buttons["a"] != "A" {
			t.Errorf("%q: buttons = %v", in, d.Buttons)
		}
		if !slices.Equal(d.Suggestions, []string{"x", "y"}) {
			t.Errorf("%q: suggestions = %v", in, d.Suggestions)
		}
	}
}

func TestParseDirectivesAbsent(t *testing.T) {
	text, d := ParseDirectives("  Just a reply.\n")
	if text != "Just a reply." {
		t.Errorf("text = %q", text)
	}
	if d.Buttons != nil || d.Suggestions != nil || d.Overlay != "" {
		t.Errorf("directives = %+v, want none", d)
	}

	text, d = ParseDirectives(`Reply[SUGGESTIONS]["only"]`)
	if text != "Reply" || d.Buttons != nil || !slices.Equal(d.Suggestions, []string{"only"}) {
		t.Errorf("suggestions only: %q %+v", text, d)
	}
}

func TestParseDirectivesMalformedButtons(t *testing.T) {
	text, d := ParseDirectives(`The stars align.[BUTTONS]{not valid json}`)
	if text != "The stars align." {
		t.Errorf("text = %q", text)
	}
	if d.Buttons != nil {
		t.Errorf("buttons = %v, want absent", d.Buttons)
	}
}

func TestParseDirectivesMalformedKeepsOthers(t *testing.T) {
	text, d := ParseDirectives(`Text[BUTTONS]{"a":1}[SUGGESTIONS]["ok"]`)
	if text != "Text" {
		t.Errorf("text = %q", text)
	}
	if d.Buttons != nil {
		t.Errorf("non-string button labels should be rejected, got %v", d.Buttons)
	}
	if !slices.Equal(d.Suggestions, []string{"ok"}) {
		t.Errorf("suggestions = %v", d.Suggestions)
	}
}

func TestParseDirectivesMultilineAndTrailingProse(t *testing.T) {
	in := "Reply\n[BUTTONS]\n{\n  \"showDetails\": \"More\"\n}\nHope this helps!\n[SUGGESTIONS] [\"a\"]"
	text, d := ParseDirectives(in)
	if text != "Reply" {
		t.Errorf("text = %q", text)
	}
	if d.Buttons["showDetails"] != "More" {
		t.Errorf("buttons = %v", d.Buttons)
	}
	if strings.Contains(text, "Hope") {
		t.Error("text after a directive block must not return to the reply")
	}
}

func TestParseDirectivesOverlay(t *testing.T) {
	in := `Your palm.[OVERLAY]<svg viewBox="0 0 400 600"><path d="M 0,0"/></svg>[BUTTONS]{"a":"A"}`
	text, d := ParseDirectives(in)
	if text != "Your palm." {
		t.Errorf("text = %q", text)
	}
	if d.Overlay != `<svg viewBox="0 0 400 600"><path d="M 0,0"/></svg>` {
		t.Errorf("overlay = %q", d.Overlay)
	}
	_, d = ParseDirectives(`x[OVERLAY]not svg`)
	if d.Overlay != "" {
		t.Errorf("malformed overlay = %q, want empty", d.Overlay)
	}
}

func TestVisible(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello", "Hello"},
		{"Hello world\n[BUT", "Hello world"},
		{"Hello [", "Hello"},
		{"Hello [SUGGESTIONS][\"x", "Hello"},
		{"Array [1, 2]", "Array [1, 2]"},
		{"See [note", "See [note"},
		{"Hi[BUTTONS]{\"a\":\"A\"}[SUGG", "Hi"},
	}
	for _, tt := range tests {
		if got := Visible(tt.in); got != tt.want {
			t.Errorf("Visible(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
