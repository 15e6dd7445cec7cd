package txengine

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Skeleton is a transaction before signing. Nonce is filled per attempt.
type Skeleton struct {
	From     common.Address
	To       *common.Address // nil deploys a contract
	Value    *big.Int
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
	Nonce    uint64
	ChainID  *big.Int
}

func (s Skeleton) WithNonce(n uint64) Skeleton {
	s.Nonce = n
	return s
}

// Tx builds the unsigned legacy (gasPrice) transaction.
func (s Skeleton) Tx() *types.Transaction {
	value := s.Value
	if value == nil {
		value = new(big.Int)
	}
	gp := s.GasPrice
	if gp == nil {
		gp = new(big.Int)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    s.Nonce,
		GasPrice: new(big.Int).Set(gp),
		Gas:      s.Gas,
		To:       s.To,
		Value:    new(big.Int).Set(value),
		Data:     common.CopyBytes(s.Data),
	})
}

// Signer turns a skeleton into a signed transaction.
type Signer interface {
	Sign(s Skeleton, key *ecdsa.PrivateKey) (*types.Transaction, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(Skeleton, *ecdsa.PrivateKey) (*types.Transaction, error)

func (f SignerFunc) Sign(s Skeleton, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	return f(s, key)
}

// LegacySigner signs with the latest signer for the skeleton's chain id.
var LegacySigner Signer = SignerFunc(func(s Skeleton, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	return types.SignTx(s.Tx(), types.LatestSignerForChainID(s.ChainID), key)
})
