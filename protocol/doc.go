// Package protocol defines the phase-gated trial protocol: the four-phase
// state machine with timer-based transitions, the signed message envelope
// used to authenticate oracle callbacks, the decryption request/response
// types, and the protocol configuration.
//
// # Phases
//
// A trial moves through four ordered phases:
//
//	Enrollment → Treatment → Monitoring → Analysis
//
// The cursor is strictly increasing and Analysis is terminal. A transition
// is legal only after a fixed duration has elapsed since the previous one;
// premature transitions fail with a timing error rather than silently
// no-oping. An emergency termination force-jumps the cursor to Analysis
// from any non-terminal phase.
//
// # Decryption protocol
//
// Entering Analysis issues at most one DecryptionRequest: an ordered batch
// of opaque handles to be resolved off-ledger by a decryption oracle. The
// oracle answers asynchronously with a plaintext batch and a signature set
// over the canonical digest of (request id, batch). Verification is
// all-or-nothing; a failed callback leaves the request pending with zero
// state change. No timeout path exists for an outstanding request.
package protocol
