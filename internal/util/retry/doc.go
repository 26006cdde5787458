// Package retry provides bounded exponential backoff for provider API calls.
//
// [WithExponentialBackoff] retries an operation a fixed number of times and
// never loops without bound: destructive calls (delete, terminate) are only
// retried while the provider reports a transient condition such as a
// dependency that has not been released yet.
package retry
