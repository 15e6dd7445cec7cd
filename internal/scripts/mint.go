package scripts

import (
	"context"

	"github.com/ligun0805/somnia-runner/internal/mint"
	"github.com/ligun0805/somnia-runner/internal/progress"
)

// RunMintPing mints 1000 $PING to every wallet.
func RunMintPing(ctx context.Context, env Env) error {
	s, err := open(env, MintPing)
	defer s.finish()
	s.rep.Panelf(progress.Plain, "START MINTING $PING")
	s.rep.Logf(progress.Plain, "--- Start Minting $PING ---")
	if err != nil {
		return s.fail(err)
	}
	if err := s.connect(ctx); err != nil {
		return s.fail(err)
	}

	st := s.env.Settings
	d := &mint.Driver{
		Minter: &mint.Pinger{Backend: s.conn, Token: st.Ping(), Report: s.rep, TxURL: s.conn.TxURL},
		Report: s.rep,
		Delay:  st.MintPingDelay(),
		Rand:   s.env.Rand,
		Sleep:  s.env.Sleep,
	}
	ok, err := d.Run(ctx, s.wallets)
	if err != nil {
		return s.canceled(err)
	}
	s.completed(ok, len(s.wallets), "wallets successful")
	return nil
}

// RunMintSUSDT mints sUSDT once for every wallet that holds none.
func RunMintSUSDT(ctx context.Context, env Env) error {
	s, err := open(env, MintSUSDT)
	defer s.finish()
	s.rep.Panelf(progress.Plain, "{cyan-fg}MINT sUSDT - SOMNIA TESTNET{/cyan-fg}")
	s.rep.Logf(progress.Plain, "--- Start Minting sUSDT ---")
	if err != nil {
		return s.fail(err)
	}
	if err := s.connect(ctx); err != nil {
		return s.fail(err)
	}

	st := s.env.Settings
	d := &mint.Driver{
		Minter: &mint.SUSDT{Backend: s.conn, Token: st.SUSDT(), Report: s.rep, TxURL: s.conn.TxURL, Rand: s.env.Rand},
		Report: s.rep,
		Delay:  st.MintSUSDTDelay(),
		Rand:   s.env.Rand,
		Sleep:  s.env.Sleep,
	}
	ok, err := d.Run(ctx, s.wallets)
	if err != nil {
		return s.canceled(err)
	}
	s.completed(ok, len(s.wallets), "TRANSACTIONS SUCCESSFUL")
	return nil
}
