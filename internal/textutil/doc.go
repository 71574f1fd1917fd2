// Package textutil cleans lyric text before it reaches speech synthesis and
// tidies user-supplied file names.
//
// CleanForTTS strips bracketed stage directions and symbols the synthesizer
// would read aloud, then caps the length of a single utterance.
// SanitizeFileName makes an uploaded name safe to show and to reuse as a file
// name.
package textutil
