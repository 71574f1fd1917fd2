package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxTTSChars bounds the text handed to a single TTS call.
const MaxTTSChars = 120

var (
	quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "’", "'", "`", "'")
	bracketed     = regexp.MustCompile(`\[[^\]]*\]`)
	parenthesized = regexp.MustCompile(`\([^)]*\)`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// CleanForTTS strips stage directions and stray symbols, keeping letters,
// digits and the punctuation that shapes prosody.
func CleanForTTS(text string) string {
	if text == "" {
		return ""
	}
	text = quoteReplacer.Replace(text)
	text = bracketed.ReplaceAllString(text, " ")
	text = parenthesized.ReplaceAllString(text, " ")
	text = strings.Map(keepRune, text)
	text = collapseRepeats(text)
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	return Shorten(text, MaxTTSChars)
}

func keepRune(r rune) rune {
	switch {
	case r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		return r
	case r >= 0xC0 && r <= 0xFF && r != 0xD7 && r != 0xF7:
		return r
	case unicode.IsSpace(r):
		return r
	case strings.ContainsRune(`'.,?!:;-`, r):
		return r
	}
	return ' '
}

// collapseRepeats reduces runs of the same mark ("!!!", "...") to one.
func collapseRepeats(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var prev rune
	for _, r := range text {
		if r == prev && strings.ContainsRune("!?.,", r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Shorten trims text to at most limit bytes, preferring to cut at the last
// period, comma or space when that keeps more than 20 bytes.
func Shorten(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	head := text[:limit]
	cut := max(strings.LastIndex(head, "."), strings.LastIndex(head, ","), strings.LastIndex(head, " "))
	if cut > 20 {
		return strings.TrimSpace(text[:cut])
	}
	return strings.TrimSpace(strings.ToValidUTF8(head, ""))
}
