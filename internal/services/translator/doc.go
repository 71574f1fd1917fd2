// Package translator turns transcribed lyric segments into the target
// language through an OpenAI-compatible chat completions endpoint.
//
// Client owns the transport: JSON-only requests, retry with exponential
// backoff on 408/429/5xx and timeouts, and Retry-After handling. Translator
// fans segments out over a bounded worker pool gated by a request rate
// limiter, and reassembles results in segment order.
package translator
