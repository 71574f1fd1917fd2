// Package pitch extracts fundamental-frequency contours from vocal audio and
// serves windowed lookups over them.
//
// Extraction uses the YIN estimator at a fixed analysis rate and hop. A
// Contour is immutable once returned and may be read from any number of
// goroutines. The process-wide analyzer returned by Shared is created on
// first use and never torn down; its scratch buffers come from a pool so
// concurrent jobs do not contend on a lock.
package pitch
