// Package mint claims the test network faucet tokens: 1000 $PING per call and a one-time sUSDT mint.
package mint

import (
	"context"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/somnia-runner/internal/amount"
	"github.com/ligun0805/somnia-runner/internal/approval"
	"github.com/ligun0805/somnia-runner/internal/config"
	"github.com/ligun0805/somnia-runner/internal/keystore"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/txengine"
)

const (
	PingGas  = 2_473_724
	SUSDTGas = 2_000_000
	// SUSDTAmount is what one sUSDT mint credits, for logs only.
	SUSDTAmount = 1000
	// MaxGasBump is the upper bound of the random gas price increase of an sUSDT mint.
	MaxGasBump = 0.07
)

// Selector of mint() on both faucet contracts.
var Selector = common.FromHex("0x1249c58b")

// PingAmount is the 1000 $PING (18 decimals) requested per mint.
var PingAmount = new(big.Int).Mul(big.NewInt(1000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// PingCalldata is mint() followed by the receiver and the amount as two raw words.
func PingCalldata(to common.Address) []byte {
	data := make([]byte, 0, 4+64)
	data = append(data, Selector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	return append(data, common.LeftPadBytes(PingAmount.Bytes(), 32)...)
}

// BumpGasPrice returns floor(gp * (1 + f*MaxGasBump)) for f in [0, 1).
func BumpGasPrice(gp *big.Int, f float64) *big.Int {
	bump, _ := new(big.Float).Mul(new(big.Float).SetInt(gp), big.NewFloat(f*MaxGasBump)).Int(nil)
	return bump.Add(bump, gp)
}

// Backend is the chain surface of both minters.
type Backend interface {
	txengine.OnceBackend
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	ChainID() *big.Int
}

// Minter mints for one wallet and reports whether it succeeded.
type Minter interface {
	MintOne(ctx context.Context, w keystore.Wallet) bool
}

// Pinger mints 1000 $PING to each wallet.
type Pinger struct {
	Backend Backend
	Token   common.Address
	Report  *progress.Reporter
	TxURL   func(hash string) string
	Signer  txengine.Signer
}

func (p *Pinger) MintOne(ctx context.Context, w keystore.Wallet) bool {
	rep := p.Report

	bal, err := p.Backend.NativeBalance(ctx, w.Address)
	if err != nil {
		rep.Bothf(progress.Error, "Error: Wallet %d │ Processing failed: %v", w.Index, err)
		return false
	}
	rep.Logf(progress.Info, "Info: Wallet %d │ STT balance: %s STT", w.Index, amount.Format(bal, 18))
	if bal.Cmp(approval.MinNativeBalance) < 0 {
		rep.Logf(progress.Warn, "Warning: Wallet %d │ Insufficient STT: %s", w.Index, w.Address.Hex())
		rep.Panelf(progress.Warn, "Wallet %d: Insufficient STT", w.Index)
		return false
	}

	gasPrice, err := p.Backend.GasPrice(ctx)
	if err != nil {
		rep.Bothf(progress.Error, "Error: Wallet %d │ Processing failed: %v", w.Index, err)
		return false
	}
	token := p.Token
	rcpt, err := txengine.SendOnce(ctx, p.Backend, p.Signer, txengine.Skeleton{
		From:     w.Address,
		To:       &token,
		Value:    new(big.Int),
		Data:     PingCalldata(w.Address),
		Gas:      PingGas,
		GasPrice: gasPrice,
		ChainID:  p.Backend.ChainID(),
	}, w.Key)
	if err != nil {
		rep.Bothf(progress.Error, "Error: Wallet %d │ Processing failed: %v", w.Index, err)
		return false
	}
	rep.Logf(progress.Success, "Success: Wallet %d │ Tx sent: %s", w.Index, txLink(p.TxURL, rcpt))
	rep.Panelf(progress.Success, "Wallet %d: Tx sent", w.Index)
	if rcpt.Status != types.ReceiptStatusSuccessful {
		rep.Bothf(progress.Error, "Error: Wallet %d │ Mint failed", w.Index)
		return false
	}
	rep.Bothf(progress.Success, "Success: Wallet %d │ Minted 1000 $PING successfully", w.Index)
	return true
}

// SUSDT mints sUSDT once per wallet; wallets already holding any are skipped.
type SUSDT struct {
	Backend Backend
	Token   common.Address
	Report  *progress.Reporter
	TxURL   func(hash string) string
	Signer  txengine.Signer
	Rand    *rand.Rand
}

// HasMinted treats a failed balance read as not minted.
func (s *SUSDT) HasMinted(ctx context.Context, addr common.Address) bool {
	bal, err := s.Backend.TokenBalance(ctx, s.Token, addr)
	if err != nil {
		s.Report.Logf(progress.Warn, "Warning: Failed to check sUSDT balance: %v", err)
		return false
	}
	return bal != nil && bal.Sign() > 0
}

func (s *SUSDT) MintOne(ctx context.Context, w keystore.Wallet) bool {
	rep := s.Report
	if s.HasMinted(ctx, w.Address) {
		rep.Logf(progress.Warn, "Warning: This wallet has already minted sUSDT! Skipping this request.")
		rep.Panelf(progress.Warn, "Wallet %d: Already minted sUSDT", w.Index)
		return false
	}

	rep.Logf(progress.Plain, "Checking balance...")
	rep.Panelf(progress.Plain, "Checking balance for wallet %d...", w.Index)
	bal, err := s.Backend.NativeBalance(ctx, w.Address)
	if err != nil {
		rep.Bothf(progress.Error, "Error: Wallet %d │ Failed: %v", w.Index, err)
		return false
	}
	if bal.Cmp(approval.MinNativeBalance) < 0 {
		rep.Logf(progress.Error, "Error: Insufficient balance: %s STT < 0.001 STT", amount.Format(bal, 18))
		rep.Panelf(progress.Error, "Wallet %d: Insufficient balance: %s STT", w.Index, amount.Format(bal, 18))
		return false
	}

	rep.Logf(progress.Plain, "Preparing transaction...")
	rep.Panelf(progress.Plain, "Preparing transaction for wallet %d...", w.Index)
	gasPrice, err := s.Backend.GasPrice(ctx)
	if err != nil {
		rep.Bothf(progress.Error, "Error: Wallet %d │ Failed: %v", w.Index, err)
		return false
	}
	f := rand.Float64
	if s.Rand != nil {
		f = s.Rand.Float64
	}
	token := s.Token

	rep.Logf(progress.Plain, "Sending transaction...")
	rep.Panelf(progress.Plain, "Sending transaction for wallet %d...", w.Index)
	rcpt, err := txengine.SendOnce(ctx, s.Backend, s.Signer, txengine.Skeleton{
		From:     w.Address,
		To:       &token,
		Value:    new(big.Int),
		Data:     common.CopyBytes(Selector),
		Gas:      SUSDTGas,
		GasPrice: BumpGasPrice(gasPrice, f()),
		ChainID:  s.Backend.ChainID(),
	}, w.Key)
	if err != nil {
		rep.Bothf(progress.Error, "Error: Wallet %d │ Failed: %v", w.Index, err)
		return false
	}
	link := txLink(s.TxURL, rcpt)
	if rcpt.Status != types.ReceiptStatusSuccessful {
		rep.Logf(progress.Error, "Error: Mint failed │ Tx: %s", link)
		rep.Panelf(progress.Error, "Wallet %d: Mint failed", w.Index)
		return false
	}
	rep.Logf(progress.Success, "Success: Successfully minted %d sUSDT! │ Tx: %s", SUSDTAmount, link)
	rep.Logf(progress.Plain, "  Address: %s", w.Address.Hex())
	rep.Logf(progress.Plain, "  Amount: %d sUSDT", SUSDTAmount)
	rep.Logf(progress.Plain, "  Gas: %d", rcpt.GasUsed)
	rep.Logf(progress.Plain, "  Block: %s", rcpt.BlockNumber)
	rep.Logf(progress.Plain, "  Balance: %s STT", amount.Format(bal, 18))
	rep.Panelf(progress.Success, "Wallet %d: Successfully minted %d sUSDT!", w.Index, SUSDTAmount)
	return true
}

// Driver visits wallets one by one with a random pause in between.
type Driver struct {
	Minter Minter
	Report *progress.Reporter
	Delay  config.Range
	Rand   *rand.Rand
	Sleep  func(ctx context.Context, d time.Duration) error
}

// Run returns the number of successful mints. Cancellation stops it between wallets.
func (d *Driver) Run(ctx context.Context, wallets []keystore.Wallet) (int, error) {
	ok := 0
	for i, w := range wallets {
		if err := ctx.Err(); err != nil {
			return ok, err
		}
		d.Report.Panelf(progress.Plain, "PROCESSING WALLET %d (%d/%d)", w.Index, i+1, len(wallets))
		d.Report.Logf(progress.Plain, "--- Processing wallet %d (%d/%d) ---", w.Index, i+1, len(wallets))
		if d.Minter.MintOne(ctx, w) {
			ok++
		}
		if i < len(wallets)-1 {
			pause := d.Delay.Draw(d.Rand)
			d.Report.Logf(progress.Plain, "Info: Sleeping for %d seconds", int(pause.Seconds()))
			d.Report.Panelf(progress.Plain, "Sleeping for %d seconds...", int(pause.Seconds()))
			sleep := d.Sleep
			if sleep == nil {
				sleep = txengine.SleepContext
			}
			if err := sleep(ctx, pause); err != nil {
				return ok, err
			}
		}
	}
	return ok, nil
}

func txLink(url func(string) string, r *types.Receipt) string {
	if url == nil {
		return r.TxHash.Hex()
	}
	return url(r.TxHash.Hex())
}
