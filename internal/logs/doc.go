// Package logs reads the daemon and job log files for `songdub logs`.
//
// Reads stop at the last complete line so a record being written is never
// shown half finished. Follow survives the daemon swapping the songdub.log
// link to a new run's file by starting over at the top of the new target.
package logs
