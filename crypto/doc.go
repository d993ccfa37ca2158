// Package crypto provides the cryptographic primitives for the confidential
// trial core.
//
// This package implements the low-level operations the trial protocol is
// built on:
//
//   - Ed25519 signing keys and signatures used to authenticate the oracle's
//     plaintext callbacks and the trial coordinator
//   - Opaque value handles: fixed-size identifiers standing in for
//     confidentially stored scalars, tagged with the bit width of the value
//     they conceal
//   - Deterministic handle derivation (HKDF-SHA256) and cryptographically
//     secure random handle generation
//
// Handles carry no plaintext. Plaintext custody and capability enforcement
// live in the trial package; this package only defines the identifier
// algebra and the key material.
package crypto
