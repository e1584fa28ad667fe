package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SignedBatch is a batch ready for submission. Hash is the blake2b-256 of
// the JSON-encoded batch and Signature signs that hash.
type SignedBatch struct {
	Batch     *Batch `json:"batch"`
	Signer    string `json:"signer"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
}

// Signer signs batches with the faucet account key.
type Signer interface {
	Sign(ctx context.Context, batch *Batch) (*SignedBatch, error)
	// Address returns the account the signer pays from.
	Address() string
}

// Ed25519Signer signs with an ed25519 key derived from a 32-byte seed.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer parses a hex seed, with or without 0x prefix.
func NewEd25519Signer(seedHex string) (*Ed25519Signer, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSeed, ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Address returns the hex encoded public key.
func (s *Ed25519Signer) Address() string {
	return "0x" + hex.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

// Sign hashes and signs the batch.
func (s *Ed25519Signer) Sign(ctx context.Context, batch *Batch) (*SignedBatch, error) {
	if batch == nil || len(batch.Calls) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, ErrEmptyBatch)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	hash, err := HashBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	sig := ed25519.Sign(s.key, hash)
	return &SignedBatch{
		Batch:     batch,
		Signer:    s.Address(),
		Hash:      "0x" + hex.EncodeToString(hash),
		Signature: "0x" + hex.EncodeToString(sig),
	}, nil
}

// HashBatch returns the blake2b-256 digest of the JSON-encoded batch.
func HashBatch(batch *Batch) ([]byte, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return sum[:], nil
}

// Verify checks that the signed batch hash matches its content and that the
// signature was produced by the declared signer.
func Verify(sb *SignedBatch) error {
	if sb == nil || sb.Batch == nil {
		return ErrInvalidSignature
	}

	hash, err := HashBatch(sb.Batch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if "0x"+hex.EncodeToString(hash) != sb.Hash {
		return fmt.Errorf("%w: hash mismatch", ErrInvalidSignature)
	}

	pub, err := hex.DecodeString(strings.TrimPrefix(sb.Signer, "0x"))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad signer key", ErrInvalidSignature)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sb.Signature, "0x"))
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", ErrInvalidSignature)
	}
	if !ed25519.Verify(pub, hash, sig) {
		return ErrInvalidSignature
	}
	return nil
}
