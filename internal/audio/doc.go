// Package audio holds the in-memory PCM representation shared by the dubbing
// pipeline along with WAV encoding, channel mixing, resampling, and the
// ffmpeg-backed transcoder used for inputs that are not plain WAV.
//
// Samples are interleaved float64 values in [-1, 1]. Every helper returns a
// new Buffer; callers never observe in-place mutation of an argument.
package audio
