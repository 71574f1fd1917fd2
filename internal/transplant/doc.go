// Package transplant re-sings an utterance on a borrowed melody: it keeps the
// utterance's spectral envelope and aperiodicity and swaps in an external F0
// contour resampled onto the utterance's own frame grid.
package transplant
