// Package approval decides whether a spender must be approved before a swap and submits the approval.
package approval

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/ligun0805/somnia-runner/internal/amount"
	"github.com/ligun0805/somnia-runner/internal/chain"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/txengine"
)

// Decision is the outcome of Decide.
type Decision int

const (
	NeedsApproval Decision = iota
	Sufficient
	InsufficientBalance
)

func (d Decision) String() string {
	switch d {
	case Sufficient:
		return "SUFFICIENT"
	case InsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	}
	return "NEEDS_APPROVAL"
}

// Decide is pure: balance is checked first, then the existing allowance.
func Decide(balance, allowance, required *uint256.Int) Decision {
	if balance.Lt(required) {
		return InsufficientBalance
	}
	if !allowance.Lt(required) {
		return Sufficient
	}
	return NeedsApproval
}

// Outcome of Gate.Ensure.
type Outcome int

const (
	Failed Outcome = iota
	Approved
	AlreadyApproved
)

// ApproveGas is the fixed gas limit of an approve call.
const ApproveGas = 3_000_000

// MinNativeBalance is the native balance required before an approval is attempted (0.001 STT).
var MinNativeBalance = big.NewInt(1_000_000_000_000_000)

var erc20ABI = mustABI(`[
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`)

// Reader is the read side of the chain the gate needs.
type Reader interface {
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenState(ctx context.Context, token, owner, spender common.Address) (chain.TokenState, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	ChainID() *big.Int
}

// Submitter sends the approval.
type Submitter interface {
	Submit(ctx context.Context, req txengine.Request, stats *txengine.Stats) (*types.Receipt, txengine.State)
}

// Gate checks balances and allowance of one wallet and approves when needed.
type Gate struct {
	Reader    Reader
	Submitter Submitter
	Report    *progress.Reporter
	Symbol    string // token symbol used in messages
}

// Request names the wallet, the token and the human amount to approve.
type Request struct {
	Wallet  int
	Owner   common.Address
	Key     *ecdsa.PrivateKey
	Token   common.Address
	Spender common.Address
	Amount  string // decimal, e.g. "100" or "2.5"
}

// Ensure returns Approved or AlreadyApproved when swaps may proceed. Failures before
// submission count as Reject on stats; SUFFICIENT leaves stats untouched.
func (g *Gate) Ensure(ctx context.Context, req Request, stats *txengine.Stats) Outcome {
	rep := g.Report
	if rep == nil {
		rep = progress.NewReporter(nil, nil)
	}
	sym := g.Symbol

	native, err := g.Reader.NativeBalance(ctx, req.Owner)
	if err != nil {
		stats.Reject()
		rep.Bothf(progress.Error, "Error: Wallet %d │ Could not read STT balance: %v", req.Wallet, err)
		return Failed
	}
	if native.Cmp(MinNativeBalance) < 0 {
		stats.Reject()
		rep.Logf(progress.Error, "Error: Wallet %d │ Insufficient STT balance for approval: %s STT < 0.001 STT", req.Wallet, amount.Format(native, 18))
		rep.Panelf(progress.Error, "Wallet %d: Insufficient STT for approval (%s STT)", req.Wallet, amount.Format(native, 18))
		return Failed
	}

	ts, err := g.Reader.TokenState(ctx, req.Token, req.Owner, req.Spender)
	if err != nil {
		stats.Reject()
		rep.Bothf(progress.Error, "Error: Wallet %d │ Could not read %s state: %v", req.Wallet, sym, err)
		return Failed
	}
	required, err := amount.ToWei(req.Amount, int(ts.Decimals))
	if err != nil {
		stats.Reject()
		rep.Bothf(progress.Error, "Error: Wallet %d │ Bad approval amount %q: %v", req.Wallet, req.Amount, err)
		return Failed
	}
	bal, allowance := amount.U256(ts.Balance), amount.U256(ts.Allowance)

	rep.Logf(progress.Info, "Wallet %d │ Current Allowance: %s (wei) for spender %s", req.Wallet, allowance.Dec(), req.Spender.Hex())
	rep.Logf(progress.Info, "Wallet %d │ Token Balance (%s): %s %s", req.Wallet, sym, amount.Format(ts.Balance, int(ts.Decimals)), sym)
	rep.Logf(progress.Info, "Wallet %d │ Amount to Approve: %s %s (%s wei)", req.Wallet, req.Amount, sym, required.Dec())

	switch Decide(bal, allowance, required) {
	case InsufficientBalance:
		stats.Reject()
		rep.Logf(progress.Error, "Error: Wallet %d │ Insufficient %s balance to approve. Has %s %s, needs %s %s.",
			req.Wallet, sym, amount.Format(ts.Balance, int(ts.Decimals)), sym, req.Amount, sym)
		rep.Panelf(progress.Error, "Wallet %d: Insufficient %s balance for approval.", req.Wallet, sym)
		return Failed
	case Sufficient:
		rep.Logf(progress.Success, "Info: Wallet %d │ Allowance already sufficient for %s %s. Skipping approval.", req.Wallet, req.Amount, sym)
		rep.Panelf(progress.Success, "Wallet %d: Allowance sufficient for %s %s.", req.Wallet, req.Amount, sym)
		return AlreadyApproved
	}

	gasPrice, err := g.Reader.GasPrice(ctx)
	if err != nil {
		stats.Reject()
		rep.Bothf(progress.Error, "Error: Wallet %d │ Could not read gas price: %v", req.Wallet, err)
		return Failed
	}
	data, err := erc20ABI.Pack("approve", req.Spender, required.ToBig())
	if err != nil {
		stats.Reject()
		rep.Bothf(progress.Error, "Error: Wallet %d │ Encode approve: %v", req.Wallet, err)
		return Failed
	}
	token := req.Token
	rcpt, _ := g.Submitter.Submit(ctx, txengine.Request{
		Skeleton: txengine.Skeleton{
			From:     req.Owner,
			To:       &token,
			Value:    new(big.Int),
			Data:     data,
			Gas:      ApproveGas,
			GasPrice: gasPrice,
			ChainID:  g.Reader.ChainID(),
		},
		Key:    req.Key,
		Kind:   "Approval",
		Wallet: req.Wallet,
	}, stats)
	if rcpt == nil {
		return Failed
	}
	return Approved
}

func mustABI(js string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(err)
	}
	return a
}
