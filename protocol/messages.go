package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
)

// Signed wraps a message with an Ed25519 signature for authentication.
type Signed[T any] struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Object    *T               `json:"object"`
}

// NewSigned creates an authenticated message by signing the serialized
// object and public key.
func NewSigned[T any](privkey crypto.PrivateKey, obj *T) (*Signed[T], error) {
	pubkey, err := privkey.PublicKey()
	if err != nil {
		return nil, err
	}

	serializedData, err := SerializeMessage(obj)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(privkey, append(serializedData, pubkey...))
	if err != nil {
		return nil, err
	}

	return &Signed[T]{
		PublicKey: pubkey,
		Signature: signature,
		Object:    obj,
	}, nil
}

// UnsafeObject returns the wrapped object without verifying the signature.
func (s *Signed[T]) UnsafeObject() *T {
	return s.Object
}

// Recover verifies the signature and returns the authenticated object with
// the signer's public key.
func (s *Signed[T]) Recover() (*T, crypto.PublicKey, error) {
	serializedData, err := SerializeMessage(s.Object)
	if err != nil {
		return nil, nil, err
	}

	ok := s.Signature.Verify(s.PublicKey, append(serializedData, s.PublicKey...))
	if !ok {
		return nil, nil, errors.New("signature not valid")
	}

	return s.Object, s.PublicKey, nil
}

// DecryptionRequest is an ordered batch of handles issued to the oracle on
// entry into the Analysis phase. It is created at most once per trial and
// resolved at most once by a verified callback.
type DecryptionRequest struct {
	RequestID uuid.UUID       `json:"request_id"`
	Handles   []crypto.Handle `json:"handles"`
	IssuedAt  time.Time       `json:"issued_at"`
}

// PlaintextBatch is the oracle's answer: one plaintext per requested
// handle, in the original request order.
type PlaintextBatch struct {
	RequestID uuid.UUID `json:"request_id"`
	Values    []uint64  `json:"values"`
}

// DecryptionCallback is the full oracle answer as it travels on the
// wire: the plaintext batch plus the signature set vouching for it.
type DecryptionCallback struct {
	Batch      PlaintextBatch `json:"batch"`
	Signatures SignatureSet   `json:"signatures"`
}

// OracleSignature is one oracle's signature over a batch digest.
type OracleSignature struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

// SignatureSet is the set of oracle signatures accompanying a plaintext
// batch. Verification is all-or-nothing: every signature in the set must
// verify against the batch digest and a registered oracle key.
type SignatureSet []OracleSignature

// BatchDigest computes the canonical digest a signature set commits to:
// SHA3-256 over the request id followed by each value in big-endian order.
// The encoding is order-sensitive, binding the signatures to both the
// request and the exact batch sequence.
func BatchDigest(requestID uuid.UUID, values []uint64) []byte {
	h := sha3.New256()
	h.Write(requestID[:])
	var buf [8]byte
	for _, v := range values {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return h.Sum(nil)
}

// SignBatch produces one oracle's signature over a plaintext batch.
func SignBatch(privkey crypto.PrivateKey, requestID uuid.UUID, values []uint64) (OracleSignature, error) {
	pubkey, err := privkey.PublicKey()
	if err != nil {
		return OracleSignature{}, err
	}
	sig, err := crypto.Sign(privkey, BatchDigest(requestID, values))
	if err != nil {
		return OracleSignature{}, err
	}
	return OracleSignature{PublicKey: pubkey, Signature: sig}, nil
}

// UnmarshalMessage deserializes a message from JSON.
func UnmarshalMessage[T any](data []byte) (*T, error) {
	var msg T
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// DecodeMessage deserializes a message from a JSON reader.
func DecodeMessage[T any](reader io.Reader) (*T, error) {
	var msg T
	err := json.NewDecoder(reader).Decode(&msg)
	return &msg, err
}

// SerializeMessage serializes a message to JSON.
func SerializeMessage[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}
