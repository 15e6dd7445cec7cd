// Package nft deploys a minimal ERC-721 style collection and mints or burns its tokens.
package nft

import (
	"context"
	_ "embed"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/keystore"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/txengine"
)

// Gas is the fixed limit of deploy, mint and burn.
const Gas = 20_000_000

var (
	//go:embed nftcollection.bin
	bytecodeHex string
	//go:embed nftcollection.abi.json
	abiJSON string
)

var (
	ABI      = mustABI(abiJSON)
	Bytecode = common.FromHex(strings.TrimSpace(bytecodeHex))
)

func mustABI(js string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(err)
	}
	return a
}

// DeployData is the creation code followed by the packed constructor arguments.
func DeployData(name, symbol string, maxSupply *big.Int) ([]byte, error) {
	args, err := ABI.Pack("", name, symbol, maxSupply)
	if err != nil {
		return nil, errors.Wrap(err, "pack constructor")
	}
	return append(common.CopyBytes(Bytecode), args...), nil
}

// Backend is the chain surface of the manager.
type Backend interface {
	txengine.OnceBackend
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	ChainID() *big.Int
}

// Manager sends single-attempt collection transactions.
type Manager struct {
	Backend Backend
	Report  *progress.Reporter
	TxURL   func(hash string) string
	Signer  txengine.Signer
}

func (m *Manager) send(ctx context.Context, w keystore.Wallet, to *common.Address, data []byte) (*types.Receipt, error) {
	gasPrice, err := m.Backend.GasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "gas price")
	}
	return txengine.SendOnce(ctx, m.Backend, m.Signer, txengine.Skeleton{
		From:     w.Address,
		To:       to,
		Value:    new(big.Int),
		Data:     data,
		Gas:      Gas,
		GasPrice: gasPrice,
		ChainID:  m.Backend.ChainID(),
	}, w.Key)
}

func (m *Manager) link(r *types.Receipt) string {
	if m.TxURL == nil {
		return r.TxHash.Hex()
	}
	return m.TxURL(r.TxHash.Hex())
}

// Deploy creates a collection owned by w and returns its address.
func (m *Manager) Deploy(ctx context.Context, w keystore.Wallet, name, symbol string, maxSupply *big.Int) (common.Address, bool) {
	rep := m.Report
	fail := func(err error) (common.Address, bool) {
		rep.Logf(progress.Error, "Error: NFT deployment failed for wallet %d: %v", w.Index, err)
		rep.Panelf(progress.Error, "Wallet %d: NFT deployment failed: %v", w.Index, err)
		return common.Address{}, false
	}

	rep.Logf(progress.Plain, "Preparing deployment for wallet %d...", w.Index)
	data, err := DeployData(name, symbol, maxSupply)
	if err != nil {
		return fail(err)
	}
	rep.Logf(progress.Plain, "Sending deployment transaction...")
	rcpt, err := m.send(ctx, w, nil, data)
	if err != nil {
		return fail(err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		rep.Logf(progress.Error, "Error: NFT deployment failed. Transaction status is false.")
		rep.Panelf(progress.Error, "Wallet %d: NFT deployment failed", w.Index)
		return common.Address{}, false
	}
	rep.Logf(progress.Success, "Success: NFT collection created!")
	rep.Logf(progress.Plain, "  Contract Address: %s", rcpt.ContractAddress.Hex())
	rep.Logf(progress.Plain, "  Transaction Hash: %s", m.link(rcpt))
	rep.Panelf(progress.Success, "Wallet %d: NFT collection created!", w.Index)
	return rcpt.ContractAddress, true
}

// Mint mints tokenID with uri to the sender.
func (m *Manager) Mint(ctx context.Context, w keystore.Wallet, contract common.Address, tokenID *big.Int, uri string) bool {
	rep := m.Report
	fail := func(err error) bool {
		rep.Logf(progress.Error, "Error: NFT mint failed for wallet %d: %v", w.Index, err)
		rep.Panelf(progress.Error, "Wallet %d: NFT mint failed: %v", w.Index, err)
		return false
	}

	rep.Logf(progress.Plain, "Preparing mint transaction for wallet %d...", w.Index)
	data, err := ABI.Pack("mint", w.Address, tokenID, uri)
	if err != nil {
		return fail(err)
	}
	rep.Logf(progress.Plain, "Sending mint transaction...")
	rcpt, err := m.send(ctx, w, &contract, data)
	if err != nil {
		return fail(err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		rep.Logf(progress.Error, "Error: NFT mint failed. Transaction status is false.")
		rep.Panelf(progress.Error, "Wallet %d: NFT mint failed", w.Index)
		return false
	}
	rep.Logf(progress.Success, "Success: NFT minted! Token ID: %s", tokenID)
	rep.Logf(progress.Plain, "  Transaction Hash: %s", m.link(rcpt))
	rep.Panelf(progress.Success, "Wallet %d: NFT minted!", w.Index)
	return true
}

// OwnerOf calls ownerOf(tokenID) on contract.
func (m *Manager) OwnerOf(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error) {
	data, err := ABI.Pack("ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	out, err := m.Backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data})
	if err != nil {
		return common.Address{}, err
	}
	vals, err := ABI.Unpack("ownerOf", out)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "unpack ownerOf")
	}
	return *abi.ConvertType(vals[0], new(common.Address)).(*common.Address), nil
}

// Burn burns tokenID. A foreign or unknown owner only produces a warning; the
// transaction is still sent and the chain decides.
func (m *Manager) Burn(ctx context.Context, w keystore.Wallet, contract common.Address, tokenID *big.Int) bool {
	rep := m.Report
	fail := func(err error) bool {
		rep.Logf(progress.Error, "Error: NFT burn failed for wallet %d: %v", w.Index, err)
		rep.Panelf(progress.Error, "Wallet %d: NFT burn failed: %v", w.Index, err)
		return false
	}

	rep.Logf(progress.Plain, "Preparing burn transaction for wallet %d...", w.Index)
	rep.Logf(progress.Plain, "Wallet Address: %s", w.Address.Hex())
	owner, err := m.OwnerOf(ctx, contract, tokenID)
	switch {
	case err != nil:
		rep.Logf(progress.Warn, "Warning: Could not get owner of token %s. It may not exist. Error: %v", tokenID, err)
	case owner != w.Address:
		rep.Logf(progress.Info, "Info: Token ID %s is owned by %s", tokenID, owner.Hex())
		rep.Logf(progress.Warn, "Warning: The current wallet is NOT the owner of this token. The transaction will likely fail.")
	default:
		rep.Logf(progress.Info, "Info: Token ID %s is owned by %s", tokenID, owner.Hex())
	}

	data, err := ABI.Pack("burn", tokenID)
	if err != nil {
		return fail(err)
	}
	rep.Logf(progress.Plain, "Sending burn transaction...")
	rcpt, err := m.send(ctx, w, &contract, data)
	if err != nil {
		return fail(err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		rep.Logf(progress.Error, "Error: NFT burn failed. Transaction status is false.")
		rep.Panelf(progress.Error, "Wallet %d: NFT burn failed", w.Index)
		return false
	}
	rep.Logf(progress.Success, "Success: NFT burned! Token ID: %s", tokenID)
	rep.Logf(progress.Plain, "  Transaction Hash: %s", m.link(rcpt))
	rep.Panelf(progress.Success, "Wallet %d: NFT burned!", w.Index)
	return true
}
