package txengine

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// OnceBackend is what SendOnce needs from the chain.
type OnceBackend interface {
	NonceAt(ctx context.Context, addr common.Address) (uint64, error)
	SendAndWait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// SendOnce signs sk with the latest mined nonce and waits for the receipt.
// There is no retry; a reverted receipt is returned without error.
func SendOnce(ctx context.Context, b OnceBackend, signer Signer, sk Skeleton, key *ecdsa.PrivateKey) (*types.Receipt, error) {
	nonce, err := b.NonceAt(ctx, sk.From)
	if err != nil {
		return nil, errors.Wrap(err, "read nonce")
	}
	if signer == nil {
		signer = LegacySigner
	}
	tx, err := signer.Sign(sk.WithNonce(nonce), key)
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}
	return b.SendAndWait(ctx, tx)
}
