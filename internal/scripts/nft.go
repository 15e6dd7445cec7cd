package scripts

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/nft"
	"github.com/ligun0805/somnia-runner/internal/progress"
)

// RunNFTCollection deploys a collection, or mints or burns a token, with every wallet.
func RunNFTCollection(ctx context.Context, env Env) error {
	s, err := open(env, NFTCollection)
	defer s.finish()
	s.rep.Panelf(progress.Plain, "NFT MANAGEMENT - SOMNIA TESTNET")
	s.rep.Logf(progress.Plain, "--- Start NFT Management ---")
	if err != nil {
		return s.fail(err)
	}
	if err := s.connect(ctx); err != nil {
		return s.fail(err)
	}

	r := &nft.Runner{
		Manager: &nft.Manager{Backend: s.conn, Report: s.rep, TxURL: s.conn.TxURL},
		Ledger:  nft.NewLedger(s.env.Settings.NFTLedgerFile),
		Report:  s.rep,
		Input:   s.input,
		Delay:   s.env.Settings.NFTWalletDelay,
		Sleep:   s.env.Sleep,
	}
	ok, err := r.Run(ctx, s.wallets)
	switch {
	case errors.Is(err, nft.ErrInvalidInput):
		return nil
	case err != nil:
		return s.canceled(err)
	}
	s.completed(ok, len(s.wallets), "TRANSACTIONS SUCCESSFUL")
	return nil
}
