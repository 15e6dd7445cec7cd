package swap

import (
	"context"
	"math/big"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/somnia-runner/internal/chain"
	"github.com/ligun0805/somnia-runner/internal/config"
	"github.com/ligun0805/somnia-runner/internal/keystore"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/txengine"
)

func tokens(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18)) }

type fakeChain struct {
	mu        sync.Mutex
	pong      common.Address
	balances  map[common.Address]*big.Int // PONG balance per owner
	allowance map[common.Address]*big.Int
	sent      []*types.Transaction
}

func (f *fakeChain) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(1e18), nil
}

func (f *fakeChain) TokenState(_ context.Context, _, owner, _ common.Address) (chain.TokenState, error) {
	allw := f.allowance[owner]
	if allw == nil {
		allw = new(big.Int)
	}
	return chain.TokenState{Decimals: 18, Balance: f.balances[owner], Allowance: allw}, nil
}

func (f *fakeChain) TokenDecimals(context.Context, common.Address) (uint8, error) { return 18, nil }

func (f *fakeChain) TokenBalance(_ context.Context, token, owner common.Address) (*big.Int, error) {
	if token == f.pong {
		return f.balances[owner], nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) GasPrice(context.Context) (*big.Int, error) { return big.NewInt(6_000_000_000), nil }
func (f *fakeChain) ChainID() *big.Int                          { return big.NewInt(50312) }

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SendAndWait(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()}, nil
}

type sleepLog struct{ ds []time.Duration }

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.ds = append(s.ds, d)
	return nil
}

func quiet() *progress.Reporter {
	return progress.NewReporter(progress.LogFunc(func(string) {}), progress.PanelFunc(func(string) {}))
}

func newWallets(t *testing.T, n int) []keystore.Wallet {
	t.Helper()
	ws := make([]keystore.Wallet, n)
	for i := range ws {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		ws[i] = keystore.Wallet{Index: i + 1, Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
	}
	return ws
}

func newOrchestrator(fc *fakeChain, sl *sleepLog) *Orchestrator {
	st := config.Default()
	sub := &txengine.Submitter{Backend: fc, Report: quiet(), Sleep: sl.sleep}
	o := New(st, fc, sub, quiet())
	o.Sleep = sl.sleep
	o.Rand = rand.New(rand.NewPCG(3, 4))
	return o
}

func TestAmounts(t *testing.T) {
	in, outMin, err := Amounts("100", 18)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000", in.Dec())
	assert.Equal(t, "95000000000000000000", outMin.Dec())

	in, outMin, err = Amounts("0.5", 6)
	require.NoError(t, err)
	assert.Equal(t, "500000", in.Dec())
	assert.Equal(t, "475000", outMin.Dec())

	_, _, err = Amounts("-3", 18)
	assert.Error(t, err)
}

func TestEncodeExactInputSingle(t *testing.T) {
	st := config.Default()
	p := ExactInputParams{
		TokenIn:          st.Pong(),
		TokenOut:         st.Ping(),
		Fee:              big.NewInt(Fee),
		Recipient:        common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"),
		AmountIn:         tokens(100),
		AmountOutMinimum: tokens(95),
	}
	data, err := EncodeExactInputSingle(p)
	require.NoError(t, err)
	assert.Equal(t, "0x04e45aaf", hexutil.Encode(data[:4]))
	assert.Len(t, data, 4+7*32)

	got, err := DecodeExactInputSingle(data)
	require.NoError(t, err)
	assert.Equal(t, p.TokenIn, got.TokenIn)
	assert.Equal(t, p.Recipient, got.Recipient)
	assert.Equal(t, int64(Fee), got.Fee.Int64())
	assert.Equal(t, 0, got.AmountIn.Cmp(p.AmountIn))
	assert.Equal(t, 0, got.AmountOutMinimum.Cmp(p.AmountOutMinimum))
	assert.Zero(t, got.SqrtPriceLimitX96.Sign())

	_, err = DecodeExactInputSingle([]byte{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestSwapInsufficientBalanceDoesNotSubmit(t *testing.T) {
	ws := newWallets(t, 1)
	fc := &fakeChain{pong: config.Default().Pong(), balances: map[common.Address]*big.Int{ws[0].Address: tokens(10)}}
	o := newOrchestrator(fc, &sleepLog{})
	stats := &txengine.Stats{}

	_, ok := o.Swap(context.Background(), ws[0], "100", stats)
	assert.False(t, ok)
	assert.Empty(t, fc.sent)
	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 0, snap.Pending)
}

func TestRunThreeWalletsTwoSwaps(t *testing.T) {
	ws := newWallets(t, 3)
	st := config.Default()
	fc := &fakeChain{
		pong:      st.Pong(),
		balances:  map[common.Address]*big.Int{},
		allowance: map[common.Address]*big.Int{ws[0].Address: tokens(200)},
	}
	for _, w := range ws {
		fc.balances[w.Address] = tokens(1000)
	}
	sl := &sleepLog{}
	o := newOrchestrator(fc, sl)
	stats := &txengine.Stats{}

	sum, err := o.Run(context.Background(), ws, "100", 2, stats)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Successful)
	assert.Equal(t, 6, sum.Total)
	assert.Equal(t, 0, sum.Stats.Pending)
	// wallet 1 already had allowance for 2 * 100
	assert.Equal(t, 2+6, sum.Stats.Success)
	assert.Zero(t, sum.Stats.Failed)
	require.Len(t, fc.sent, 8)

	swaps := 0
	for _, tx := range fc.sent {
		if p, err := DecodeExactInputSingle(tx.Data()); err == nil {
			swaps++
			assert.Equal(t, st.Router(), *tx.To())
			assert.Equal(t, uint64(SwapGas), tx.Gas())
			assert.Equal(t, 0, p.AmountIn.Cmp(tokens(100)))
			assert.Equal(t, 0, p.AmountOutMinimum.Cmp(tokens(95)))
		} else {
			assert.Equal(t, st.Pong(), *tx.To())
		}
	}
	assert.Equal(t, 6, swaps)

	// one step pause per wallet and two wallet pauses
	require.Len(t, sl.ds, 5)
	var steps, walletPauses int
	for _, d := range sl.ds {
		switch {
		case d >= time.Second && d <= 5*time.Second:
			steps++
		case d >= 30*time.Second && d <= 90*time.Second:
			walletPauses++
		}
	}
	assert.Equal(t, 3, steps)
	assert.Equal(t, 2, walletPauses)
}

func TestRunSkipsWalletOnApprovalFailure(t *testing.T) {
	ws := newWallets(t, 2)
	fc := &fakeChain{
		pong: config.Default().Pong(),
		balances: map[common.Address]*big.Int{
			ws[0].Address: tokens(50), // cannot cover 100
			ws[1].Address: tokens(1000),
		},
	}
	o := newOrchestrator(fc, &sleepLog{})
	stats := &txengine.Stats{}

	sum, err := o.Run(context.Background(), ws, "100", 1, stats)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Successful)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Stats.Failed)
	assert.Equal(t, 2, sum.Stats.Success) // approval + swap of wallet 2
	assert.Equal(t, 0, sum.Stats.Pending)
}

func TestRunStopsWhenCanceled(t *testing.T) {
	ws := newWallets(t, 3)
	fc := &fakeChain{pong: config.Default().Pong(), balances: map[common.Address]*big.Int{}}
	for _, w := range ws {
		fc.balances[w.Address] = tokens(1000)
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := newOrchestrator(fc, &sleepLog{})
	o.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	stats := &txengine.Stats{}

	sum, err := o.Run(ctx, ws, "100", 1, stats)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Successful)
	assert.Equal(t, 0, sum.Stats.Pending)
	assert.Len(t, fc.sent, 2)
}
