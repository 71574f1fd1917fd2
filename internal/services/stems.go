package services

import "strings"

// Stems are the outputs of source separation.
type Stems struct {
	Vocals       string
	Instrumental string
}

// ExpandTemplate substitutes {key} placeholders in each argument of a
// command template.
func ExpandTemplate(template []string, values map[string]string) []string {
	pairs := make([]string, 0, 2*len(values))
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)
	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = replacer.Replace(arg)
	}
	return out
}
