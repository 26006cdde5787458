// Package naming generates names for temporary and produced resources.
//
// Temporary resources (security groups, key pairs, build servers) carry a
// random 32-bit hex suffix so concurrent runs in one account never collide.
// Produced images get a uuid so their names stay unique across runs.
package naming
