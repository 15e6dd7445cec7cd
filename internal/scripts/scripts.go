// Package scripts holds the run entry points shared by the CLI and the desktop app.
// Each run loads keys, connects, visits every wallet and reports a final tally.
package scripts

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/chain"
	"github.com/ligun0805/somnia-runner/internal/config"
	"github.com/ligun0805/somnia-runner/internal/keystore"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/txengine"
)

// Env is what a driver hands to a run. Only Settings is required.
type Env struct {
	Settings config.Settings
	Log      progress.ProgressLog
	Panel    progress.StatusPanel
	Input    progress.InputRequester
	Close    func()

	// Dial defaults to chain.Dial.
	Dial  func(ctx context.Context, st config.Settings, rep *progress.Reporter) (*chain.Connection, error)
	Rand  *rand.Rand
	Sleep func(ctx context.Context, d time.Duration) error
}

// Script names, also used as CLI subcommands.
const (
	Swapping      = "swap"
	MintPing      = "mint-ping"
	MintSUSDT     = "mint-susdt"
	NFTCollection = "nft"
)

// Runs maps script names to their entry points.
var Runs = map[string]func(context.Context, Env) error{
	Swapping:      RunSwapping,
	MintPing:      RunMintPing,
	MintSUSDT:     RunMintSUSDT,
	NFTCollection: RunNFTCollection,
}

type session struct {
	env     Env
	runID   string
	rep     *progress.Reporter
	input   progress.InputRequester
	fileLog *progress.FileLog
	wallets []keystore.Wallet
	conn    *chain.Connection
}

// open sets up sinks and loads wallets. The caller must call finish.
func open(env Env, script string) (*session, error) {
	s := &session{env: env, runID: uuid.NewString(), input: env.Input}
	if s.input == nil {
		s.input = progress.Defaults{}
	}

	log := env.Log
	if log == nil {
		log = progress.Stdout()
	}
	if path := strings.TrimSpace(env.Settings.LogFile); path != "" {
		fl, err := progress.OpenFileLog(path, s.runID, script)
		if err != nil {
			s.rep = progress.NewReporter(log, env.Panel)
			s.rep.Logf(progress.Warn, "Warning: file log disabled: %v", err)
		} else {
			s.fileLog = fl
			log = progress.Tee{log, fl}
		}
	}
	if s.rep == nil {
		s.rep = progress.NewReporter(log, env.Panel)
	}

	ws, err := keystore.Load(env.Settings.KeyFile, s.rep.Log())
	if err != nil {
		return s, err
	}
	if env.Settings.ShuffleWallets {
		ws = keystore.Shuffle(ws, env.Rand)
	}
	s.wallets = ws
	s.rep.Logf(progress.Plain, "Info: Found %d wallets", len(ws))
	s.rep.Panelf(progress.Plain, "Found %d wallets", len(ws))
	return s, nil
}

func (s *session) connect(ctx context.Context) error {
	dial := s.env.Dial
	if dial == nil {
		dial = chain.Dial
	}
	conn, err := dial(ctx, s.env.Settings, s.rep)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *session) submitter() *txengine.Submitter {
	sub := txengine.NewSubmitter(s.conn, s.rep, s.conn.TxURL)
	sub.Rand = s.env.Rand
	sub.Sleep = s.env.Sleep
	return sub
}

// fail reports err once through both sinks and returns it.
func (s *session) fail(err error) error {
	s.rep.Logf(progress.Error, "Error: %v", err)
	s.rep.Panelf(progress.Error, "Error: %v", err)
	return err
}

func (s *session) completed(ok, total int, noun string) {
	msg := fmt.Sprintf("COMPLETED: %d/%d %s", ok, total, noun)
	s.rep.Panelf(progress.Plain, "{green-fg}%s{/green-fg}", msg)
	s.rep.Logf(progress.Plain, "{green-fg}--- %s ---{/green-fg}", msg)
}

func (s *session) finish() {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.fileLog != nil {
		s.fileLog.Close()
	}
	if s.env.Close != nil {
		s.env.Close()
	}
}

// canceled reports an interrupted run. Cancellation is not an error of the run itself.
func (s *session) canceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.rep.Bothf(progress.Warn, "Run interrupted: %v", err)
		return err
	}
	return s.fail(err)
}
