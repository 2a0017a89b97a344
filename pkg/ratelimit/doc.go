// Package ratelimit paces outgoing requests.
//
// The Pacer spaces requests evenly at a requests-per-minute budget and adds
// a random jitter after each slot so the request pattern does not look
// mechanical. All waiting respects context cancellation.
package ratelimit
