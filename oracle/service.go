// Package oracle implements the decryption oracle side of the trial
// protocol. An oracle holds a signing key registered in the trial's
// capability ledger; given a decryption request it resolves each handle
// to its plaintext and signs the batch, producing the callback payload
// the coordinator verifies before aggregation.
//
// In production the oracle is an external collaborator. This package is
// the same contract made runnable: point it at any Resolver (the trial
// vault implements it) and it produces callbacks the coordinator accepts.
package oracle

import (
	"log/slog"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// Resolver resolves an opaque handle to its plaintext. The trial vault
// satisfies this interface.
type Resolver interface {
	Resolve(h crypto.Handle) (uint64, bool)
}

// Service fulfills decryption requests with a single signing key.
type Service struct {
	signingKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	resolver   Resolver
	log        *slog.Logger
}

// Config holds the dependencies for an oracle service.
type Config struct {
	SigningKey crypto.PrivateKey
	Resolver   Resolver
	Log        *slog.Logger
}

// New creates an oracle service. The signing key's public half must be
// registered in the coordinator's ledger for callbacks to verify.
func New(cfg Config) (*Service, error) {
	pubkey, err := cfg.SigningKey.PublicKey()
	if err != nil {
		return nil, protocol.Errorf(protocol.ValidationError, "invalid oracle signing key: %v", err)
	}
	if cfg.Resolver == nil {
		return nil, protocol.Errorf(protocol.ValidationError, "oracle requires a resolver")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		signingKey: cfg.SigningKey,
		publicKey:  pubkey,
		resolver:   cfg.Resolver,
		log:        log,
	}, nil
}

// PublicKey returns the oracle's verification key.
func (s *Service) PublicKey() crypto.PublicKey {
	return s.publicKey
}

// Fulfill resolves every handle in the request and signs the resulting
// batch. Resolution is all-or-nothing: a handle outside the resolver's
// custody fails the whole request, since a partial batch would not match
// the request size and the coordinator would reject it anyway.
func (s *Service) Fulfill(req protocol.DecryptionRequest) ([]uint64, protocol.SignatureSet, error) {
	values := make([]uint64, 0, len(req.Handles))
	for i, h := range req.Handles {
		v, ok := s.resolver.Resolve(h)
		if !ok {
			return nil, nil, protocol.Errorf(protocol.ValidationError,
				"handle %d of request %s not in custody", i, req.RequestID)
		}
		values = append(values, v)
	}

	sig, err := protocol.SignBatch(s.signingKey, req.RequestID, values)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("decryption request fulfilled",
		"request", req.RequestID, "handles", len(req.Handles))
	return values, protocol.SignatureSet{sig}, nil
}
