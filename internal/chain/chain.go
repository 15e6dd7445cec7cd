// Package chain wraps the RPC connection to the test network.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/lmittmann/w3/w3types"
	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/config"
	"github.com/ligun0805/somnia-runner/internal/progress"
)

var ErrNotListening = errors.New("failed to connect to RPC")

var (
	funcDecimals  = w3.MustNewFunc("decimals()", "uint8")
	funcBalanceOf = w3.MustNewFunc("balanceOf(address)", "uint256")
	funcAllowance = w3.MustNewFunc("allowance(address,address)", "uint256")
)

// Connection is shared read-only by every operation of a run.
type Connection struct {
	rc             *rpc.Client
	ec             *ethclient.Client
	w3c            *w3.Client
	chainID        *big.Int
	receiptTimeout time.Duration
	settings       config.Settings
}

// TokenState holds ERC-20 reads taken in one batch.
type TokenState struct {
	Decimals  uint8
	Balance   *big.Int
	Allowance *big.Int
}

// Dial opens the RPC endpoint from st and verifies it.
func Dial(ctx context.Context, st config.Settings, rep *progress.Reporter) (*Connection, error) {
	rep.Logf(progress.Info, "Initializing connection to %s...", st.RPCURL)
	rc, err := rpc.DialContext(ctx, st.RPCURL)
	if err != nil {
		rep.Bothf(progress.Error, "Error: connection failed: %v", err)
		return nil, errors.Wrap(err, "dial rpc")
	}
	c, err := Open(ctx, rc, st, rep)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return c, nil
}

// Open verifies an already dialed client: liveness first, then chain id.
func Open(ctx context.Context, rc *rpc.Client, st config.Settings, rep *progress.Reporter) (*Connection, error) {
	rep.Logf(progress.Info, "Checking network connection...")
	var listening bool
	if err := rc.CallContext(ctx, &listening, "net_listening"); err != nil {
		rep.Bothf(progress.Error, "Error: connection failed: %v", err)
		return nil, errors.Wrap(err, "net_listening")
	}
	if !listening {
		rep.Bothf(progress.Error, "Error: Failed to connect to RPC")
		return nil, ErrNotListening
	}

	ec := ethclient.NewClient(rc)
	id, err := ec.ChainID(ctx)
	if err != nil {
		rep.Bothf(progress.Error, "Error: connection failed: %v", err)
		return nil, errors.Wrap(err, "eth_chainId")
	}
	if id.Int64() != st.ChainID {
		rep.Bothf(progress.Error, "Error: unexpected chain id %s, want %d", id, st.ChainID)
		return nil, fmt.Errorf("chain id mismatch: rpc=%s config=%d", id, st.ChainID)
	}
	rep.Bothf(progress.Success, "Connected to Somnia Testnet │ Chain ID: %s", id)

	return &Connection{
		rc:             rc,
		ec:             ec,
		w3c:            w3.NewClient(rc),
		chainID:        id,
		receiptTimeout: st.ReceiptTimeout,
		settings:       st,
	}, nil
}

func (c *Connection) Close() { c.rc.Close() }

func (c *Connection) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

func (c *Connection) Settings() config.Settings { return c.settings }

// TxURL returns the explorer link for hash.
func (c *Connection) TxURL(hash string) string { return c.settings.TxURL(hash) }

func (c *Connection) GasPrice(ctx context.Context) (*big.Int, error) {
	gp, err := c.ec.SuggestGasPrice(ctx)
	return gp, errors.Wrap(err, "eth_gasPrice")
}

// PendingNonceAt counts transactions of addr including the mempool.
func (c *Connection) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	return c.ec.PendingNonceAt(ctx, addr)
}

// NonceAt counts mined transactions of addr.
func (c *Connection) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	return c.ec.NonceAt(ctx, addr, nil)
}

func (c *Connection) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return c.ec.CallContract(ctx, msg, nil)
}

// Read runs arbitrary w3 calls in one batch request.
func (c *Connection) Read(ctx context.Context, calls ...w3types.RPCCaller) error {
	return c.w3c.CallCtx(ctx, calls...)
}

func (c *Connection) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	if err := c.Read(ctx, eth.Balance(addr, nil).Returns(&bal)); err != nil {
		return nil, errors.Wrap(err, "eth_getBalance")
	}
	return bal, nil
}

func (c *Connection) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var bal *big.Int
	if err := c.Read(ctx, eth.CallFunc(token, funcBalanceOf, owner).Returns(&bal)); err != nil {
		return nil, errors.Wrap(err, "balanceOf")
	}
	return bal, nil
}

func (c *Connection) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	var dec uint8
	if err := c.Read(ctx, eth.CallFunc(token, funcDecimals).Returns(&dec)); err != nil {
		return 0, errors.Wrap(err, "decimals")
	}
	return dec, nil
}

// TokenState reads decimals, balanceOf(owner) and allowance(owner, spender) together.
func (c *Connection) TokenState(ctx context.Context, token, owner, spender common.Address) (TokenState, error) {
	var (
		st        TokenState
		bal, allw *big.Int
	)
	err := c.Read(ctx,
		eth.CallFunc(token, funcDecimals).Returns(&st.Decimals),
		eth.CallFunc(token, funcBalanceOf, owner).Returns(&bal),
		eth.CallFunc(token, funcAllowance, owner, spender).Returns(&allw),
	)
	if err != nil {
		return TokenState{}, errors.Wrap(err, "read token state")
	}
	st.Balance, st.Allowance = bal, allw
	return st, nil
}

// SendAndWait broadcasts tx and blocks until it is mined or the receipt timeout passes.
func (c *Connection) SendAndWait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := c.ec.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()
	rcpt, err := bind.WaitMined(waitCtx, c.ec, tx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, NotMinedError(c.receiptTimeout)
		}
		return nil, err
	}
	return rcpt, nil
}

// NotMinedError is returned when no receipt shows up in time. The wording is matched
// by the retry classifier.
func NotMinedError(timeout time.Duration) error {
	return fmt.Errorf("transaction was not mined within %d seconds, please make sure your transaction was properly sent. Be aware that it might still be mined", int(timeout.Seconds()))
}
