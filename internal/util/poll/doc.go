// Package poll provides a bounded wait primitive for pull-based resource status.
//
// Cloud providers used by amiforge expose no push notifications, so every
// "wait until available" step is an explicit loop: fetch status, check a
// target predicate and a failure predicate, sleep, repeat until a wall-clock
// timeout. Wait makes the interval, timeout and both predicates parameters of
// the call instead of hiding them.
package poll
