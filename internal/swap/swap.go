// Package swap runs exactInputSingle swaps through the test network's V3 router.
package swap

import (
	"context"
	"math/big"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/amount"
	"github.com/ligun0805/somnia-runner/internal/approval"
	"github.com/ligun0805/somnia-runner/internal/config"
	"github.com/ligun0805/somnia-runner/internal/keystore"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/txengine"
)

const (
	// Fee is the pool fee tier in hundredths of a bip.
	Fee = 500
	// SwapGas is the fixed gas limit of a swap.
	SwapGas = 3_000_000
	// SlippageNum/SlippageDen is the fraction of amountIn accepted as minimum output.
	SlippageNum = 95
	SlippageDen = 100
)

const routerJSON = `[{"type":"function","name":"exactInputSingle","stateMutability":"payable",
 "inputs":[{"name":"params","type":"tuple","components":[
   {"name":"tokenIn","type":"address"},
   {"name":"tokenOut","type":"address"},
   {"name":"fee","type":"uint24"},
   {"name":"recipient","type":"address"},
   {"name":"amountIn","type":"uint256"},
   {"name":"amountOutMinimum","type":"uint256"},
   {"name":"sqrtPriceLimitX96","type":"uint160"}]}],
 "outputs":[{"name":"amountOut","type":"uint256"}]}]`

var routerABI = func() abi.ABI {
	a, err := abi.JSON(strings.NewReader(routerJSON))
	if err != nil {
		panic(err)
	}
	return a
}()

// ExactInputParams mirrors ISwapRouter.ExactInputSingleParams.
type ExactInputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// EncodeExactInputSingle packs the router call. A zero price limit means no limit.
func EncodeExactInputSingle(p ExactInputParams) ([]byte, error) {
	if p.SqrtPriceLimitX96 == nil {
		p.SqrtPriceLimitX96 = new(big.Int)
	}
	return routerABI.Pack("exactInputSingle", p)
}

// DecodeExactInputSingle is the inverse of EncodeExactInputSingle.
func DecodeExactInputSingle(data []byte) (ExactInputParams, error) {
	m := routerABI.Methods["exactInputSingle"]
	if len(data) < 4 || !strings.EqualFold(common.Bytes2Hex(data[:4]), common.Bytes2Hex(m.ID)) {
		return ExactInputParams{}, errors.New("not an exactInputSingle call")
	}
	vals, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return ExactInputParams{}, errors.Wrap(err, "unpack exactInputSingle")
	}
	p := *abi.ConvertType(vals[0], new(ExactInputParams)).(*ExactInputParams)
	return p, nil
}

// Amounts returns floor(h * 10^dec) and floor(h * 0.95 * 10^dec).
func Amounts(human string, decimals uint8) (in, outMin *uint256.Int, err error) {
	if in, err = amount.ToWei(human, int(decimals)); err != nil {
		return nil, nil, err
	}
	if outMin, err = amount.Scale(human, int(decimals), SlippageNum, SlippageDen); err != nil {
		return nil, nil, err
	}
	return in, outMin, nil
}

// Reader is the read side of the chain the orchestrator needs.
type Reader interface {
	approval.Reader
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Orchestrator approves once per wallet and then swaps TokenIn for TokenOut a fixed number of times.
type Orchestrator struct {
	Reader    Reader
	Submitter approval.Submitter
	Gate      *approval.Gate
	Report    *progress.Reporter

	Router, TokenIn, TokenOut common.Address
	InSymbol, OutSymbol       string

	StepDelay, WalletDelay config.Range

	Rand  *rand.Rand
	Sleep func(ctx context.Context, d time.Duration) error
}

// New wires an orchestrator for the PONG -> PING pair from st.
func New(st config.Settings, r Reader, sub approval.Submitter, rep *progress.Reporter) *Orchestrator {
	return &Orchestrator{
		Reader:      r,
		Submitter:   sub,
		Gate:        &approval.Gate{Reader: r, Submitter: sub, Report: rep, Symbol: "$PONG"},
		Report:      rep,
		Router:      st.Router(),
		TokenIn:     st.Pong(),
		TokenOut:    st.Ping(),
		InSymbol:    "$PONG",
		OutSymbol:   "$PING",
		StepDelay:   st.SwapStepDelay(),
		WalletDelay: st.SwapWalletDelay(),
	}
}

// Summary is the result of Run.
type Summary struct {
	Successful int
	Total      int
	Stats      txengine.Snapshot
}

// Swap performs one swap for w. Checks that fail before submission count as Reject.
func (o *Orchestrator) Swap(ctx context.Context, w keystore.Wallet, human string, stats *txengine.Stats) (common.Hash, bool) {
	rep := o.reporter()
	fail := func(format string, a ...any) (common.Hash, bool) {
		stats.Reject()
		rep.Bothf(progress.Error, format, a...)
		return common.Hash{}, false
	}

	dec, err := o.Reader.TokenDecimals(ctx, o.TokenIn)
	if err != nil {
		return fail("Error: Wallet %d │ Could not read %s decimals: %v", w.Index, o.InSymbol, err)
	}
	in, outMin, err := Amounts(human, dec)
	if err != nil {
		return fail("Error: Wallet %d │ Bad swap amount %q: %v", w.Index, human, err)
	}
	balIn, err := o.Reader.TokenBalance(ctx, o.TokenIn, w.Address)
	if err != nil {
		return fail("Error: Wallet %d │ Could not read %s balance: %v", w.Index, o.InSymbol, err)
	}
	balOut, err := o.Reader.TokenBalance(ctx, o.TokenOut, w.Address)
	if err != nil {
		return fail("Error: Wallet %d │ Could not read %s balance: %v", w.Index, o.OutSymbol, err)
	}

	d := int(dec)
	rep.Logf(progress.Info, "Wallet %d │ Pre-Swap %s Balance: %s %s", w.Index, o.InSymbol, amount.Format(balIn, d), o.InSymbol)
	rep.Logf(progress.Info, "Wallet %d │ Pre-Swap %s Balance: %s %s", w.Index, o.OutSymbol, amount.Format(balOut, 18), o.OutSymbol)
	rep.Logf(progress.Info, "Wallet %d │ Amount to Swap (in %s): %s (%s wei)", w.Index, o.InSymbol, human, in.Dec())
	rep.Logf(progress.Info, "Wallet %d │ Minimum Amount Out (in %s): %s %s (%s wei) (Slippage: %d%%)",
		w.Index, o.OutSymbol, amount.Format(outMin.ToBig(), d), o.OutSymbol, outMin.Dec(), SlippageDen-SlippageNum)

	if amount.U256(balIn).Lt(in) {
		stats.Reject()
		rep.Logf(progress.Error, "Error: Wallet %d │ Insufficient %s balance for swap. Has %s %s, needs %s %s.",
			w.Index, o.InSymbol, amount.Format(balIn, d), o.InSymbol, human, o.InSymbol)
		rep.Panelf(progress.Error, "Wallet %d: Insufficient %s for swap.", w.Index, o.InSymbol)
		return common.Hash{}, false
	}

	gasPrice, err := o.Reader.GasPrice(ctx)
	if err != nil {
		return fail("Error: Wallet %d │ Could not read gas price: %v", w.Index, err)
	}
	data, err := EncodeExactInputSingle(ExactInputParams{
		TokenIn:          o.TokenIn,
		TokenOut:         o.TokenOut,
		Fee:              big.NewInt(Fee),
		Recipient:        w.Address,
		AmountIn:         in.ToBig(),
		AmountOutMinimum: outMin.ToBig(),
	})
	if err != nil {
		return fail("Error: Wallet %d │ Encode swap: %v", w.Index, err)
	}

	router := o.Router
	rcpt, _ := o.Submitter.Submit(ctx, txengine.Request{
		Skeleton: txengine.Skeleton{
			From:     w.Address,
			To:       &router,
			Value:    new(big.Int),
			Data:     data,
			Gas:      SwapGas,
			GasPrice: gasPrice,
			ChainID:  o.Reader.ChainID(),
		},
		Key:    w.Key,
		Kind:   "Swap",
		Wallet: w.Index,
	}, stats)
	if rcpt == nil {
		return common.Hash{}, false
	}
	return rcpt.TxHash, true
}

// Run processes wallets strictly one after another. It returns early with ctx.Err()
// when the context is canceled between operations.
func (o *Orchestrator) Run(ctx context.Context, wallets []keystore.Wallet, human string, swapTimes int, stats *txengine.Stats) (Summary, error) {
	rep := o.reporter()
	sum := Summary{Total: len(wallets) * swapTimes}
	done := func(err error) (Summary, error) {
		sum.Stats = stats.Snapshot()
		return sum, err
	}

	approveAmount, err := amount.Mul(human, swapTimes)
	if err != nil {
		return done(errors.Wrap(err, "swap amount"))
	}

	for i, w := range wallets {
		if err := ctx.Err(); err != nil {
			return done(err)
		}
		rep.Panelf(progress.Plain, "{cyan-fg}PROCESSING WALLET %d/%d{/cyan-fg}", i+1, len(wallets))
		rep.Logf(progress.Plain, "{cyan-fg}--- Processing Wallet %d/%d ---{/cyan-fg}", i+1, len(wallets))

		outcome := o.Gate.Ensure(ctx, approval.Request{
			Wallet:  w.Index,
			Owner:   w.Address,
			Key:     w.Key,
			Token:   o.TokenIn,
			Spender: o.Router,
			Amount:  approveAmount,
		}, stats)
		if outcome == approval.Failed {
			rep.Logf(progress.Warn, "Skipping wallet %d due to approval failure", w.Index)
			rep.Panelf(progress.Warn, "Skipping wallet %d due to approval failure", w.Index)
		} else {
			for n := 0; n < swapTimes; n++ {
				if err := ctx.Err(); err != nil {
					return done(err)
				}
				rep.Panelf(progress.Plain, "{cyan-fg}Wallet %d: Performing swap %d/%d{/cyan-fg}", w.Index, n+1, swapTimes)
				rep.Logf(progress.Plain, "{cyan-fg}Wallet %d: Performing swap %d/%d{/cyan-fg}", w.Index, n+1, swapTimes)
				if _, ok := o.Swap(ctx, w, human, stats); ok {
					sum.Successful++
				}
				if n < swapTimes-1 {
					d := o.StepDelay.Draw(o.Rand)
					rep.Logf(progress.Info, "Pausing %d seconds before next swap", int(d.Seconds()))
					rep.Panelf(progress.Info, "Pausing %d seconds before next swap...", int(d.Seconds()))
					if err := o.sleep(ctx, d); err != nil {
						return done(err)
					}
				}
			}
		}

		if i < len(wallets)-1 {
			d := o.WalletDelay.Draw(o.Rand)
			rep.Logf(progress.Info, "Waiting %d seconds before processing next wallet", int(d.Seconds()))
			rep.Panelf(progress.Info, "Waiting %d seconds before processing next wallet...", int(d.Seconds()))
			if err := o.sleep(ctx, d); err != nil {
				return done(err)
			}
		}
	}
	return done(nil)
}

func (o *Orchestrator) reporter() *progress.Reporter {
	if o.Report == nil {
		o.Report = progress.NewReporter(nil, nil)
	}
	return o.Report
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	return txengine.SleepContext(ctx, d)
}

var _ approval.Submitter = (*txengine.Submitter)(nil)
