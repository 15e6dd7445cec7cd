package txengine

import (
	"context"
	"errors"
	"math/big"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/somnia-runner/internal/progress"
)

// scriptedBackend replays one result per SendAndWait call.
type scriptedBackend struct {
	results []error // nil means "mined", status taken from statuses
	status  []uint64
	nonces  []uint64
	sent    []*types.Transaction
	calls   int
}

func (b *scriptedBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	n := uint64(len(b.nonces))
	b.nonces = append(b.nonces, n+7)
	return n + 7, nil
}

func (b *scriptedBackend) SendAndWait(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	i := b.calls
	b.calls++
	b.sent = append(b.sent, tx)
	if i < len(b.results) && b.results[i] != nil {
		return nil, b.results[i]
	}
	st := types.ReceiptStatusSuccessful
	if i < len(b.status) {
		st = b.status[i]
	}
	return &types.Receipt{Status: st, TxHash: tx.Hash()}, nil
}

type harness struct {
	sub    *Submitter
	be     *scriptedBackend
	sleeps []time.Duration
	states []State
	req    Request
}

func newHarness(t *testing.T, be *scriptedBackend) *harness {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x6aac14f090a35eea150705f72d90e4cdc4a49b2c")

	h := &harness{be: be}
	h.sub = &Submitter{
		Backend: be,
		Signer:  LegacySigner,
		Report:  progress.NewReporter(progress.LogFunc(func(string) {}), progress.PanelFunc(func(string) {})),
		Rand:    rand.New(rand.NewPCG(7, 11)),
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
		Trace: func(s State) { h.states = append(h.states, s) },
	}
	h.req = Request{
		Skeleton: Skeleton{
			From:     crypto.PubkeyToAddress(key.PublicKey),
			To:       &to,
			Gas:      3_000_000,
			GasPrice: big.NewInt(6_000_000_000),
			ChainID:  big.NewInt(50312),
		},
		Key:    key,
		Kind:   "Swap",
		Wallet: 1,
	}
	return h
}

func repeat(err error, n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = err
	}
	return out
}

func TestSubmitSuccessFirstAttempt(t *testing.T) {
	h := newHarness(t, &scriptedBackend{})
	stats := &Stats{}

	rcpt, st := h.sub.Submit(context.Background(), h.req, stats)
	require.NotNil(t, rcpt)
	assert.Equal(t, StateConfirmedSuccess, st)

	snap := stats.Snapshot()
	assert.Equal(t, Snapshot{Pending: 0, Success: 1, Failed: 0, Times: snap.Times}, snap)
	assert.Len(t, snap.Times, 1)
	assert.Empty(t, h.sleeps)
	assert.Equal(t, []State{StateInit, StateSigning, StateBroadcasting, StateConfirmedSuccess}, h.states)

	// signed with the refreshed nonce and recoverable to the sender
	tx := h.be.sent[0]
	assert.Equal(t, uint64(7), tx.Nonce())
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(50312)), tx)
	require.NoError(t, err)
	assert.Equal(t, h.req.Skeleton.From, from)
}

func TestSubmitRevertIsNotRetried(t *testing.T) {
	h := newHarness(t, &scriptedBackend{status: []uint64{types.ReceiptStatusFailed}})
	stats := &Stats{}

	rcpt, st := h.sub.Submit(context.Background(), h.req, stats)
	assert.Nil(t, rcpt)
	assert.Equal(t, StateConfirmedReverted, st)
	assert.Equal(t, 1, h.be.calls)
	assert.Empty(t, h.sleeps)

	snap := stats.Snapshot()
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 0, snap.Success)
}

func TestSubmitNonceErrorsExhaustRetries(t *testing.T) {
	h := newHarness(t, &scriptedBackend{results: repeat(errors.New("Nonce too low"), MaxRetries)})
	stats := &Stats{}
	stats.Begin() // unrelated in-flight work must be left alone

	rcpt, st := h.sub.Submit(context.Background(), h.req, stats)
	assert.Nil(t, rcpt)
	assert.Equal(t, StateRetriesExhausted, st)
	assert.Equal(t, MaxRetries, h.be.calls)
	assert.Len(t, h.sleeps, MaxRetries-1)

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, 1, snap.Failed)

	// nonce is re-read on every attempt
	assert.Len(t, h.be.nonces, MaxRetries)
	for i, tx := range h.be.sent {
		assert.Equal(t, uint64(7+i), tx.Nonce())
	}
	for i, d := range h.sleeps {
		n := float64(int(1) << (i + 1))
		assert.GreaterOrEqual(t, d.Seconds(), 5*n)
		assert.Less(t, d.Seconds(), 10*n)
	}
}

func TestSubmitTimeoutThenSuccess(t *testing.T) {
	be := &scriptedBackend{results: []error{errors.New("transaction was not mined within 750 seconds")}}
	h := newHarness(t, be)
	stats := &Stats{}

	rcpt, st := h.sub.Submit(context.Background(), h.req, stats)
	require.NotNil(t, rcpt)
	assert.Equal(t, StateConfirmedSuccess, st)
	require.Len(t, h.sleeps, 1)
	assert.GreaterOrEqual(t, h.sleeps[0], 20*time.Second)
	assert.Less(t, h.sleeps[0], 40*time.Second)
	assert.Contains(t, h.states, StateRetryWait)

	snap := stats.Snapshot()
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, 1, snap.Success)
}

func TestSubmitFatalErrorStopsImmediately(t *testing.T) {
	h := newHarness(t, &scriptedBackend{results: []error{errors.New("insufficient funds for gas * price + value")}})
	stats := &Stats{}

	rcpt, st := h.sub.Submit(context.Background(), h.req, stats)
	assert.Nil(t, rcpt)
	assert.Equal(t, StateFatalFailed, st)
	assert.Equal(t, 1, h.be.calls)
	assert.Empty(t, h.sleeps)

	snap := stats.Snapshot()
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, 1, snap.Failed)
}

func TestSubmitCancelledDuringBackoff(t *testing.T) {
	h := newHarness(t, &scriptedBackend{results: []error{errors.New("transaction underpriced")}})
	h.sub.Sleep = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := &Stats{}

	rcpt, st := h.sub.Submit(ctx, h.req, stats)
	assert.Nil(t, rcpt)
	assert.Equal(t, StateFatalFailed, st)
	snap := stats.Snapshot()
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, 1, snap.Failed)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "RETRY_WAIT", StateRetryWait.String())
	assert.Equal(t, "RETRIES_EXHAUSTED", StateRetriesExhausted.String())
	assert.True(t, StateConfirmedReverted.Terminal())
	assert.False(t, StateRetryWait.Terminal())
}

type onceBackend struct {
	scriptedBackend
	latest uint64
}

func (b *onceBackend) NonceAt(context.Context, common.Address) (uint64, error) { return b.latest, nil }

func TestSendOnceUsesLatestNonceWithoutRetry(t *testing.T) {
	be := &onceBackend{latest: 42}
	be.results = []error{errors.New("nonce too low")}
	h := newHarness(t, &be.scriptedBackend)

	_, err := SendOnce(context.Background(), be, nil, h.req.Skeleton, h.req.Key)
	require.ErrorContains(t, err, "nonce too low")
	require.Len(t, be.sent, 1)
	assert.Equal(t, uint64(42), be.sent[0].Nonce())
	assert.Empty(t, be.nonces, "pending nonce must not be read")

	rcpt, err := SendOnce(context.Background(), be, nil, h.req.Skeleton, h.req.Key)
	require.NoError(t, err)
	assert.Equal(t, be.sent[1].Hash(), rcpt.TxHash)
}
