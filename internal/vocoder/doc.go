// Package vocoder decomposes a mono utterance into F0, a smooth spectral
// envelope, and per-bin aperiodicity on a fixed frame grid, and rebuilds a
// waveform from those parts with a caller-supplied F0 track.
//
// The envelope is a cepstrally liftered log-magnitude spectrum whose lifter
// follows the frame's own pitch period, so harmonic ripple is removed while
// formant shape survives. Synthesis overlap-adds zero-phase pulse responses
// at the new pitch period for the periodic share and envelope-shaped noise
// for the aperiodic share, then matches the original frame energy.
package vocoder
