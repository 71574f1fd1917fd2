// Package language resolves user-supplied language codes against the set of
// languages that have a configured TTS voice.
package language

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"songdub/internal/services"
)

// Info describes one supported language.
type Info struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
	Voice  string `json:"voice"`
}

// Set is the immutable collection of supported languages.
type Set struct {
	voices map[string]string
	codes  []string
}

// NewSet builds a set from a language code to voice map. Keys are
// normalized to lowercase base codes; unparsable keys are dropped.
func NewSet(voices map[string]string) *Set {
	s := &Set{voices: make(map[string]string, len(voices))}
	for code, voice := range voices {
		base, err := baseCode(code)
		if err != nil {
			continue
		}
		s.voices[base] = voice
	}
	for code := range s.voices {
		s.codes = append(s.codes, code)
	}
	sort.Strings(s.codes)
	return s
}

// Codes returns the supported base codes, sorted.
func (s *Set) Codes() []string {
	return append([]string(nil), s.codes...)
}

// Supported describes every supported language.
func (s *Set) Supported() []Info {
	out := make([]Info, 0, len(s.codes))
	for _, code := range s.codes {
		out = append(out, Describe(code, s.voices[code]))
	}
	return out
}

// Normalize maps a code such as "ES", "es-MX" or "spa" onto a supported base
// code. Unsupported or malformed codes yield a validation error.
func (s *Set) Normalize(code string) (string, error) {
	base, err := baseCode(code)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "language", "parse language", err)
	}
	if _, ok := s.voices[base]; !ok {
		return "", services.Wrap(services.ErrValidation, "", "language", "unsupported language",
			fmt.Errorf("%q is not one of %s", code, strings.Join(s.codes, ", ")))
	}
	return base, nil
}

// Voice returns the TTS voice for a supported base code.
func (s *Set) Voice(code string) string {
	return s.voices[code]
}

// Describe returns display names for code.
func Describe(code, voice string) Info {
	tag := language.Make(code)
	return Info{
		Code:   code,
		Name:   display.English.Tags().Name(tag),
		Native: display.Self.Name(tag),
		Voice:  voice,
	}
}

// StageLabel renders a status such as "proxy_tts" as "Proxy Tts".
func StageLabel(status string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(status, "_", " "))
}

func baseCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty language code")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", err
	}
	base, _ := tag.Base()
	return base.String(), nil
}
