package trial

import (
	"time"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// RequestState is the lifecycle of a decryption request. There is no
// timeout path: a request the oracle never answers stays pending
// indefinitely.
type RequestState int

const (
	RequestPending RequestState = iota
	RequestVerified
)

// String returns the state's name.
func (s RequestState) String() string {
	if s == RequestVerified {
		return "verified"
	}
	return "pending"
}

// PendingRequest tracks the single decryption request a trial issues on
// entry into Analysis, alongside the request-time context aggregation
// needs: the owning identities in batch order and the enrolled count at
// request time.
type PendingRequest struct {
	Request        protocol.DecryptionRequest
	State          RequestState
	Identities     []Identity
	EnrolledCount  int
	ResolvedAt     time.Time
}
