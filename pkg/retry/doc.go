// Package retry provides backoff and retry logic for transient failures.
//
// Two strategies are provided: LinearBackoff grows the delay with the
// attempt number, ConstantBackoff keeps it fixed. Do runs an operation
// under a retry budget with a configurable retry predicate, and Wait is a
// context-aware sleep used wherever a bare delay is needed.
package retry
