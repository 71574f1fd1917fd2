// Package stretch fits rendered speech to a segment duration without changing
// its pitch, using waveform-similarity overlap-add (WSOLA).
package stretch
