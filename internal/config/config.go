package config

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Range is an inclusive [Min, Max] interval of whole seconds.
type Range struct {
	Min int
	Max int
}

func (r Range) valid() bool { return r.Min >= 0 && r.Max >= r.Min }

// Draw picks a whole number of seconds in [Min, Max]. A nil rnd uses the global source.
func (r Range) Draw(rnd *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return time.Duration(r.Min) * time.Second
	}
	intN := rand.IntN
	if rnd != nil {
		intN = rnd.IntN
	}
	return time.Duration(r.Min+intN(r.Max-r.Min+1)) * time.Second
}

// Settings keeps all configuration options. Values are read once and never mutated.
// Env keys match the names used in .env files shipped with the scripts.
type Settings struct {
	RPCURL      string `envconfig:"RPC_URL" default:"https://dream-rpc.somnia.network"`
	ChainID     int64  `envconfig:"CHAIN_ID" default:"50312"`
	ExplorerURL string `envconfig:"EXPLORER_URL" default:"https://shannon-explorer.somnia.network"`

	KeyFile        string        `envconfig:"KEY_FILE" default:"pvkey.txt"`
	NFTLedgerFile  string        `envconfig:"NFT_LEDGER_FILE" default:"contractNFT.txt"`
	LogFile        string        `envconfig:"LOG_FILE"`
	ShuffleWallets bool          `envconfig:"SHUFFLE_WALLETS" default:"true"`
	ReceiptTimeout time.Duration `envconfig:"RECEIPT_TIMEOUT" default:"750s"`

	SwapRouter string `envconfig:"SWAP_ROUTER" default:"0x6aac14f090a35eea150705f72d90e4cdc4a49b2c"`
	PongToken  string `envconfig:"PONG_TOKEN" default:"0x9beaA0016c22B646Ac311Ab171270B0ECf23098F"`
	PingToken  string `envconfig:"PING_TOKEN" default:"0x33E7fAB0a8a5da1A923180989bD617c9c2D1C493"`
	SUSDTToken string `envconfig:"SUSDT_TOKEN" default:"0x65296738D4E5edB1515e40287B6FDf8320E6eE04"`

	SwapWalletDelayMin int           `envconfig:"SWAP_WALLET_DELAY_MIN" default:"30"`
	SwapWalletDelayMax int           `envconfig:"SWAP_WALLET_DELAY_MAX" default:"90"`
	SwapStepDelayMin   int           `envconfig:"SWAP_STEP_DELAY_MIN" default:"1"`
	SwapStepDelayMax   int           `envconfig:"SWAP_STEP_DELAY_MAX" default:"5"`
	MintPingDelayMin   int           `envconfig:"MINT_PING_DELAY_MIN" default:"100"`
	MintPingDelayMax   int           `envconfig:"MINT_PING_DELAY_MAX" default:"300"`
	MintSUSDTDelayMin  int           `envconfig:"MINT_SUSDT_DELAY_MIN" default:"10"`
	MintSUSDTDelayMax  int           `envconfig:"MINT_SUSDT_DELAY_MAX" default:"30"`
	NFTWalletDelay     time.Duration `envconfig:"NFT_WALLET_DELAY" default:"10s"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Settings, error) {
	if envFile = strings.TrimSpace(envFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return Settings{}, errors.Wrapf(err, "load %s", envFile)
		}
	}
	var st Settings
	if err := envconfig.Process("", &st); err != nil {
		return Settings{}, errors.Wrap(err, "process env")
	}
	if err := st.Validate(); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// Default returns built-in values without looking at the environment.
func Default() Settings {
	return Settings{
		RPCURL:             "https://dream-rpc.somnia.network",
		ChainID:            50312,
		ExplorerURL:        "https://shannon-explorer.somnia.network",
		KeyFile:            "pvkey.txt",
		NFTLedgerFile:      "contractNFT.txt",
		ShuffleWallets:     true,
		ReceiptTimeout:     750 * time.Second,
		SwapRouter:         "0x6aac14f090a35eea150705f72d90e4cdc4a49b2c",
		PongToken:          "0x9beaA0016c22B646Ac311Ab171270B0ECf23098F",
		PingToken:          "0x33E7fAB0a8a5da1A923180989bD617c9c2D1C493",
		SUSDTToken:         "0x65296738D4E5edB1515e40287B6FDf8320E6eE04",
		SwapWalletDelayMin: 30,
		SwapWalletDelayMax: 90,
		SwapStepDelayMin:   1,
		SwapStepDelayMax:   5,
		MintPingDelayMin:   100,
		MintPingDelayMax:   300,
		MintSUSDTDelayMin:  10,
		MintSUSDTDelayMax:  30,
		NFTWalletDelay:     10 * time.Second,
	}
}

// Validate checks addresses, chain id and delay ranges.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.RPCURL) == "" {
		return errors.New("RPC_URL is empty")
	}
	if s.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", s.ChainID)
	}
	if s.ReceiptTimeout <= 0 {
		return errors.New("RECEIPT_TIMEOUT must be positive")
	}
	for name, a := range map[string]string{
		"SWAP_ROUTER": s.SwapRouter,
		"PONG_TOKEN":  s.PongToken,
		"PING_TOKEN":  s.PingToken,
		"SUSDT_TOKEN": s.SUSDTToken,
	} {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("%s is not a hex address: %q", name, a)
		}
	}
	for name, r := range map[string]Range{
		"SWAP_WALLET_DELAY": s.SwapWalletDelay(),
		"SWAP_STEP_DELAY":   s.SwapStepDelay(),
		"MINT_PING_DELAY":   s.MintPingDelay(),
		"MINT_SUSDT_DELAY":  s.MintSUSDTDelay(),
	} {
		if !r.valid() {
			return fmt.Errorf("%s range is invalid: [%d, %d]", name, r.Min, r.Max)
		}
	}
	return nil
}

func (s Settings) SwapWalletDelay() Range { return Range{s.SwapWalletDelayMin, s.SwapWalletDelayMax} }
func (s Settings) SwapStepDelay() Range   { return Range{s.SwapStepDelayMin, s.SwapStepDelayMax} }
func (s Settings) MintPingDelay() Range   { return Range{s.MintPingDelayMin, s.MintPingDelayMax} }
func (s Settings) MintSUSDTDelay() Range  { return Range{s.MintSUSDTDelayMin, s.MintSUSDTDelayMax} }

func (s Settings) Router() common.Address { return common.HexToAddress(s.SwapRouter) }
func (s Settings) Pong() common.Address   { return common.HexToAddress(s.PongToken) }
func (s Settings) Ping() common.Address   { return common.HexToAddress(s.PingToken) }
func (s Settings) SUSDT() common.Address  { return common.HexToAddress(s.SUSDTToken) }

// TxURL returns the explorer link for a transaction hash.
func (s Settings) TxURL(hash string) string {
	return strings.TrimRight(s.ExplorerURL, "/") + "/tx/" + hash
}
