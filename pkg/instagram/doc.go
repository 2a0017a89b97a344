// Package instagram handles talking to Instagram's comment APIs and decoding
// what comes back.
//
// The API surface is unstable: GraphQL doc IDs rotate, response shapes get
// renamed, and numeric fields switch between numbers and strings. This
// package therefore never binds responses to rigid structs. Payloads stay
// generic maps and extraction walks prioritized lists of known key paths,
// falling back to structural matching on key-name suffixes when none of the
// known shapes is present.
//
// The Client executes endpoint descriptions captured from a browser session.
// Requests are paced through a rate limiter and retried on transport errors
// and retryable status codes. A failed request degrades to a nil payload
// rather than an error; callers treat missing payloads as a stop condition.
package instagram
