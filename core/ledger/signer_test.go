package ledger_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/faucet/core/ledger"
)

const testSeed = "0x9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"

func TestNewEd25519Signer(t *testing.T) {
	t.Parallel()

	_, err := ledger.NewEd25519Signer("zz")
	assert.ErrorIs(t, err, ledger.ErrInvalidSeed)

	_, err = ledger.NewEd25519Signer("abcd")
	assert.ErrorIs(t, err, ledger.ErrInvalidSeed)

	s, err := ledger.NewEd25519Signer(testSeed)
	require.NoError(t, err)
	// RFC 8032 test vector 1
	assert.Equal(t, "0xd75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a", s.Address())
}

func TestEd25519Signer_Sign(t *testing.T) {
	t.Parallel()

	s, err := ledger.NewEd25519Signer(testSeed)
	require.NoError(t, err)

	batch, err := ledger.NewBatch([]ledger.Transfer{{Asset: "NATIVE", Amount: "10", Dest: "abc"}})
	require.NoError(t, err)

	signed, err := s.Sign(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), signed.Signer)
	assert.True(t, strings.HasPrefix(signed.Hash, "0x"))
	assert.Len(t, signed.Hash, 2+64)
	require.NoError(t, ledger.Verify(signed))

	again, err := s.Sign(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, signed.Hash, again.Hash, "hash is deterministic")

	t.Run("tampered batch", func(t *testing.T) {
		tampered := *signed
		tampered.Batch = &ledger.Batch{Calls: []ledger.Call{{Section: "currencies", Method: "transfer", Dest: "evil", Asset: "NATIVE", Amount: "10"}}}
		assert.ErrorIs(t, ledger.Verify(&tampered), ledger.ErrInvalidSignature)
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := s.Sign(context.Background(), &ledger.Batch{})
		assert.ErrorIs(t, err, ledger.ErrSigningFailed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Sign(ctx, batch)
		assert.ErrorIs(t, err, ledger.ErrSigningFailed)
	})
}
