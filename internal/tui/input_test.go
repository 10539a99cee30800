package tui

import (
	"strings"
	"testing"
)

func TestEditRuneAddCharacters(t *testing.T) {
	tests := []struct {
		name  string
		start string
		key   string
		want  string
	}{
		{"append to empty", "", "a", "a"},
		{"append letter", "go.de", "v", "go.dev"},
		{"append digit", "port", "8", "port8"},
		{"append space", "go blog", " ", "go blog "},
		{"append slash", "go.dev", "/", "go.dev/"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := editRune(tc.start, tc.key)
			if got != tc.want {
				t.Errorf("editRune(%q, %q) = %q, want %q", tc.start, tc.key, got, tc.want)
			}
		})
	}
}

func TestEditRuneBackspace(t *testing.T) {
	tests := []struct {
		name  string
		start string
		want  string
	}{
		{"single char", "a", ""},
		{"longer string", "hello", "hell"},
		{"empty does nothing", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := editRune(tc.start, "backspace")
			if got != tc.want {
				t.Errorf("editRune(%q, 'backspace') = %q, want %q", tc.start, got, tc.want)
			}
		})
	}
}

func TestEditRuneBackspaceMultibyte(t *testing.T) {
	// Backspace removes a full rune, not just one byte.
	got := editRune("héllo", "backspace")
	if got != "héll" {
		t.Errorf("editRune(multi-byte, backspace) = %q, want %q", got, "héll")
	}
}

func TestEditRuneIgnoresSpecialKeys(t *testing.T) {
	for _, key := range []string{"enter", "esc", "left", "right", "ctrl+s"} {
		got := editRune("text", key)
		if got != "text" {
			t.Errorf("editRune(%q) changed text to %q", key, got)
		}
	}
}

func TestEditRuneClampsLength(t *testing.T) {
	long := strings.Repeat("x", maxInputLen)
	got := editRune(long, "y")
	if got != long {
		t.Errorf("expected input clamped at %d runes, got %d", maxInputLen, len(got))
	}
}

func TestMaskString(t *testing.T) {
	if got := maskString("secret"); got != "••••••" {
		t.Errorf("maskString = %q, want six bullets", got)
	}
	if got := maskString(""); got != "" {
		t.Errorf("maskString(\"\") = %q, want empty", got)
	}
}

func TestTruncateToHeight(t *testing.T) {
	s := "one\ntwo\nthree\n"

	if got := truncateToHeight(s, 2); got != "one\ntwo\n" {
		t.Errorf("truncateToHeight(2) = %q", got)
	}
	if got := truncateToHeight(s, 10); got != s {
		t.Errorf("expected unchanged when it fits, got %q", got)
	}
	if got := truncateToHeight(s, 0); got != s {
		t.Errorf("expected unchanged for non-positive height, got %q", got)
	}
}
