// Package timbre compares voices by the statistics of their MFCCs and picks
// the reference speaker closest to a vocal recording.
package timbre
