package nft

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/keystore"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/txengine"
)

// ErrInvalidInput is returned after an operator answer was rejected and reported.
var ErrInvalidInput = errors.New("invalid input")

const ActionPrompt = "Select action:\n 1. Create NFT Collection (Deploy)\n 2. Mint NFT\n 3. Burn NFT\nEnter choice (1, 2, or 3)"

// Collection defaults offered by the deploy prompts.
const (
	DefaultName      = "Kazuha NFT"
	DefaultSymbol    = "KAZUHA"
	DefaultMaxSupply = 999
)

// Runner asks for one action and applies it with every wallet.
type Runner struct {
	Manager *Manager
	Ledger  *Ledger
	Report  *progress.Reporter
	Input   progress.InputRequester
	Delay   time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Run returns the number of successful transactions.
func (r *Runner) Run(ctx context.Context, wallets []keystore.Wallet) (int, error) {
	in := r.Input
	if in == nil {
		in = progress.Defaults{}
	}
	action, err := in.Request(ctx, ActionPrompt, progress.KindText, "1")
	if err != nil {
		return 0, err
	}

	var op func(w keystore.Wallet) bool
	choice := strings.TrimSpace(action)
	switch choice {
	case "1":
		name, err := in.Request(ctx, "Enter NFT collection name (e.g., Kazuha NFT)", progress.KindText, DefaultName)
		if err != nil {
			return 0, err
		}
		symbol, err := in.Request(ctx, "Enter collection symbol (e.g., KAZUHA)", progress.KindText, DefaultSymbol)
		if err != nil {
			return 0, err
		}
		maxSupply, err := progress.AskInt(ctx, in, "Enter maximum supply (e.g., 999)", DefaultMaxSupply)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err != nil || maxSupply <= 0 {
			return 0, r.invalid("Please enter a valid number for max supply")
		}
		op = func(w keystore.Wallet) bool {
			addr, ok := r.Manager.Deploy(ctx, w, name, symbol, big.NewInt(int64(maxSupply)))
			if ok && r.Ledger != nil {
				if err := r.Ledger.Append(addr); err != nil {
					r.Report.Logf(progress.Warn, "Warning: could not record %s: %v", addr.Hex(), err)
				}
			}
			return ok
		}
	case "2", "3":
		contract, tokenID, err := r.askTarget(ctx, in)
		if err != nil {
			return 0, err
		}
		if choice == "2" {
			uri, err := in.Request(ctx, "Enter Token URI (e.g., ipfs://...)", progress.KindText, "")
			if err != nil {
				return 0, err
			}
			op = func(w keystore.Wallet) bool { return r.Manager.Mint(ctx, w, contract, tokenID, uri) }
		} else {
			op = func(w keystore.Wallet) bool { return r.Manager.Burn(ctx, w, contract, tokenID) }
		}
	default:
		return 0, r.invalid("Invalid choice")
	}

	ok := 0
	for i, w := range wallets {
		if err := ctx.Err(); err != nil {
			return ok, err
		}
		r.Report.Panelf(progress.Plain, "PROCESSING WALLET %d (%d/%d)", w.Index, i+1, len(wallets))
		r.Report.Logf(progress.Plain, "--- Processing wallet %d (%d/%d) ---", w.Index, i+1, len(wallets))
		if op(w) {
			ok++
		}
		if i < len(wallets)-1 {
			if err := r.sleep(ctx, r.Delay); err != nil {
				return ok, err
			}
		}
	}
	return ok, nil
}

func (r *Runner) askTarget(ctx context.Context, in progress.InputRequester) (common.Address, *big.Int, error) {
	def := ""
	if r.Ledger != nil {
		if last, ok := r.Ledger.Last(); ok {
			def = last.Hex()
		}
	}
	s, err := in.Request(ctx, "Enter NFT contract address", progress.KindText, def)
	if err != nil {
		return common.Address{}, nil, err
	}
	if s = strings.TrimSpace(s); !common.IsHexAddress(s) {
		return common.Address{}, nil, r.invalid("Please enter a valid contract address")
	}
	id, err := progress.AskInt(ctx, in, "Enter Token ID", 1)
	if ctx.Err() != nil {
		return common.Address{}, nil, ctx.Err()
	}
	if err != nil || id <= 0 {
		return common.Address{}, nil, r.invalid("Please enter a valid number for Token ID")
	}
	return common.HexToAddress(s), big.NewInt(int64(id)), nil
}

func (r *Runner) invalid(msg string) error {
	r.Report.Bothf(progress.Error, "Error: %s", msg)
	return errors.Wrap(ErrInvalidInput, msg)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return txengine.SleepContext(ctx, d)
}
