// Command songdub submits songs to the dubbing daemon, inspects jobs, and runs
// the daemon itself.
//
// Daemon-backed commands (submit, status, jobs, languages) talk to the HTTP
// API at paths.api_bind, or --addr when given. serve runs the daemon in the
// foreground. dub runs the whole pipeline in-process without a daemon, which
// is handy for trying a single song. deps, config and test-notify work purely
// from the local configuration, and logs reads the daemon or job log files.
package main
