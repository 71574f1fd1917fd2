package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"My Song.mp3":         "My Song.mp3",
		"  AC/DC: Live?.wav ": "AC-DC- Live.wav",
		"..hidden.wav":        "hidden.wav",
		"..":                  "",
		"tab\tname\x00.flac":  "tabname.flac",
		`say "hi" <now>|.ogg`: "say hi now.ogg",
		"":                    "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
