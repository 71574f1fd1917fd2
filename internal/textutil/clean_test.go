package textutil

import (
	"strings"
	"testing"
)

func TestCleanForTTS(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"stage directions", "[Chorus] Hola (risas) mundo", "Hola mundo"},
		{"quotes", "“Je t’aime”", `Je t'aime`},
		{"symbols", "Ich #liebe* dich ♥", "Ich liebe dich"},
		{"repeats", "¿Qué??? No!!! Bueno...", "Qué? No! Bueno."},
		{"accents kept", "Café à la crème", "Café à la crème"},
		{"only directions", "[instrumental]", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanForTTS(tc.in); got != tc.want {
				t.Fatalf("CleanForTTS(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestShortenCutsAtBoundary(t *testing.T) {
	text := strings.Repeat("palabra ", 30)
	got := Shorten(text, MaxTTSChars)
	if len(got) > MaxTTSChars {
		t.Fatalf("expected at most %d bytes, got %d", MaxTTSChars, len(got))
	}
	if strings.HasSuffix(got, " ") || !strings.HasSuffix(got, "palabra") {
		t.Fatalf("expected cut on a word boundary, got %q", got)
	}
}

func TestShortenWithoutBoundary(t *testing.T) {
	text := strings.Repeat("a", 200)
	if got := Shorten(text, 120); len(got) != 120 {
		t.Fatalf("expected hard cut at 120, got %d", len(got))
	}
}
