package nft

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/somnia-runner/internal/keystore"
	"github.com/ligun0805/somnia-runner/internal/progress"
)

type fakeBackend struct {
	owner   common.Address
	callErr error
	status  uint64
	sent    []*types.Transaction
}

func (f *fakeBackend) NonceAt(context.Context, common.Address) (uint64, error) { return 9, nil }

func (f *fakeBackend) SendAndWait(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	f.sent = append(f.sent, tx)
	r := &types.Receipt{Status: f.status, TxHash: tx.Hash()}
	if tx.To() == nil {
		r.ContractAddress = crypto.CreateAddress(common.HexToAddress("0x01"), tx.Nonce())
	}
	return r, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return ABI.Methods["ownerOf"].Outputs.Pack(f.owner)
}

func (f *fakeBackend) GasPrice(context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (f *fakeBackend) ChainID() *big.Int                          { return big.NewInt(50312) }

type capture struct{ buf bytes.Buffer }

func (c *capture) reporter() *progress.Reporter {
	w := func(s string) { c.buf.WriteString(progress.Strip(s) + "\n") }
	return progress.NewReporter(progress.LogFunc(w), progress.PanelFunc(w))
}

func wallet(t *testing.T, idx int) keystore.Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return keystore.Wallet{Index: idx, Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

func TestEmbeddedArtifacts(t *testing.T) {
	require.NotEmpty(t, Bytecode)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40}, Bytecode[:4])
	for _, m := range []string{"mint", "burn", "ownerOf", "balanceOf", "maxSupply", "name", "owner", "symbol", "tokenURI", "totalSupply"} {
		assert.Contains(t, ABI.Methods, m)
	}
	for _, e := range []string{"Transfer", "Mint", "Burn"} {
		assert.Contains(t, ABI.Events, e)
	}
	assert.Len(t, ABI.Constructor.Inputs, 3)
}

func TestDeployData(t *testing.T) {
	data, err := DeployData("Kazuha NFT", "KAZUHA", big.NewInt(999))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, Bytecode))

	args, err := ABI.Constructor.Inputs.Unpack(data[len(Bytecode):])
	require.NoError(t, err)
	assert.Equal(t, "Kazuha NFT", args[0])
	assert.Equal(t, "KAZUHA", args[1])
	assert.Equal(t, int64(999), args[2].(*big.Int).Int64())
}

func TestManagerDeployMint(t *testing.T) {
	w := wallet(t, 1)
	be := &fakeBackend{status: types.ReceiptStatusSuccessful}
	var c capture
	m := &Manager{Backend: be, Report: c.reporter()}

	addr, ok := m.Deploy(context.Background(), w, "A", "B", big.NewInt(5))
	require.True(t, ok)
	assert.NotEqual(t, common.Address{}, addr)
	require.Len(t, be.sent, 1)
	assert.Nil(t, be.sent[0].To())
	assert.Equal(t, uint64(Gas), be.sent[0].Gas())
	assert.Equal(t, uint64(9), be.sent[0].Nonce())
	assert.Contains(t, c.buf.String(), "NFT collection created!")

	require.True(t, m.Mint(context.Background(), w, addr, big.NewInt(7), "ipfs://x"))
	tx := be.sent[1]
	assert.Equal(t, addr, *tx.To())
	args, err := ABI.Methods["mint"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, w.Address, args[0])
	assert.Equal(t, int64(7), args[1].(*big.Int).Int64())
	assert.Equal(t, "ipfs://x", args[2])

	be.status = types.ReceiptStatusFailed
	assert.False(t, m.Mint(context.Background(), w, addr, big.NewInt(8), ""))
	assert.Contains(t, c.buf.String(), "Transaction status is false")
}

func TestManagerBurnWarnsOnForeignOwner(t *testing.T) {
	w := wallet(t, 1)
	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")

	be := &fakeBackend{status: types.ReceiptStatusSuccessful, owner: w.Address}
	var c capture
	m := &Manager{Backend: be, Report: c.reporter()}
	require.True(t, m.Burn(context.Background(), w, contract, big.NewInt(3)))
	assert.NotContains(t, c.buf.String(), "NOT the owner")

	be.owner = common.HexToAddress("0x2222222222222222222222222222222222222222")
	c.buf.Reset()
	require.True(t, m.Burn(context.Background(), w, contract, big.NewInt(3)))
	assert.Contains(t, c.buf.String(), "NOT the owner")

	be.callErr = errors.New("execution reverted: Token does not exist")
	c.buf.Reset()
	m.Burn(context.Background(), w, contract, big.NewInt(3))
	assert.Contains(t, c.buf.String(), "Could not get owner of token 3")
	assert.Len(t, be.sent, 3)
}

func TestLedger(t *testing.T) {
	l := NewLedger(filepath.Join(t.TempDir(), "contractNFT.txt"))
	_, ok := l.Last()
	assert.False(t, ok)

	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")
	require.NoError(t, l.Append(a))
	require.NoError(t, l.Append(b))

	raw, err := os.ReadFile(l.Path)
	require.NoError(t, err)
	assert.Equal(t, a.Hex()+"\n"+b.Hex()+"\n", string(raw))

	all, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{a, b}, all)
	last, ok := l.Last()
	assert.True(t, ok)
	assert.Equal(t, b, last)
}

// scripted answers prompts in order; an exhausted script answers with defaults.
type scripted struct {
	answers []string
	prompts []string
}

func (s *scripted) Request(_ context.Context, prompt string, _ progress.InputKind, def string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.answers) == 0 {
		return def, nil
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	if a == "" {
		return def, nil
	}
	return a, nil
}

func newRunner(t *testing.T, be *fakeBackend, in progress.InputRequester, c *capture) (*Runner, *[]time.Duration) {
	var pauses []time.Duration
	rep := c.reporter()
	return &Runner{
		Manager: &Manager{Backend: be, Report: rep},
		Ledger:  NewLedger(filepath.Join(t.TempDir(), "contractNFT.txt")),
		Report:  rep,
		Input:   in,
		Delay:   10 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		},
	}, &pauses
}

func TestRunnerDeployWithDefaults(t *testing.T) {
	be := &fakeBackend{status: types.ReceiptStatusSuccessful}
	var c capture
	r, pauses := newRunner(t, be, nil, &c)
	ws := []keystore.Wallet{wallet(t, 1), wallet(t, 2)}

	ok, err := r.Run(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, 2, ok)
	assert.Equal(t, []time.Duration{10 * time.Second}, *pauses)

	all, err := r.Ledger.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	args, err := ABI.Constructor.Inputs.Unpack(be.sent[0].Data()[len(Bytecode):])
	require.NoError(t, err)
	assert.Equal(t, DefaultName, args[0])
	assert.Equal(t, int64(DefaultMaxSupply), args[2].(*big.Int).Int64())
}

func TestRunnerMintUsesLastDeployment(t *testing.T) {
	be := &fakeBackend{status: types.ReceiptStatusSuccessful}
	var c capture
	in := &scripted{answers: []string{"2", "", "4", "ipfs://meta"}}
	r, _ := newRunner(t, be, in, &c)
	contract := common.HexToAddress("0x3333333333333333333333333333333333333333")
	require.NoError(t, r.Ledger.Append(contract))

	ok, err := r.Run(context.Background(), []keystore.Wallet{wallet(t, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	require.Len(t, be.sent, 1)
	assert.Equal(t, contract, *be.sent[0].To())
	assert.True(t, strings.HasPrefix(in.prompts[0], "Select action"))
}

func TestRunnerRejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"choice":     {"9"},
		"max supply": {"1", "", "", "0"},
		"token id":   {"3", "0x3333333333333333333333333333333333333333", "-1"},
		"address":    {"3", "nope"},
	}
	for name, answers := range cases {
		t.Run(name, func(t *testing.T) {
			be := &fakeBackend{status: types.ReceiptStatusSuccessful}
			var c capture
			r, _ := newRunner(t, be, &scripted{answers: answers}, &c)
			_, err := r.Run(context.Background(), []keystore.Wallet{wallet(t, 1)})
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, be.sent)
			assert.Contains(t, c.buf.String(), "Error:")
		})
	}
}
