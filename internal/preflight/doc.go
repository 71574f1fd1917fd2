// Package preflight provides readiness checks for the external programs,
// filesystem paths, and translation endpoint that songdub depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and reports the results on
//     /api/status so a misconfigured host is visible before a job fails.
//   - The CLI "songdub deps" and "songdub status" commands render the same
//     results as tables.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
