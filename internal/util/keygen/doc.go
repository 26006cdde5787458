// Package keygen generates RSA key pairs for one-time SSH credentials.
//
// Keys are produced in PEM format (private) and OpenSSH authorized_keys
// format (public). Providers that mint key pairs themselves (EC2) do not
// need this package; providers that only accept a public key (Hetzner
// Cloud) get a locally generated pair whose private half never leaves
// process memory.
package keygen
