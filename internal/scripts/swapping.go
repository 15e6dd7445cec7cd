package scripts

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/amount"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/swap"
	"github.com/ligun0805/somnia-runner/internal/txengine"
)

// RunSwapping approves the router once per wallet and swaps $PONG for $PING.
func RunSwapping(ctx context.Context, env Env) error {
	s, err := open(env, Swapping)
	defer s.finish()
	s.rep.Panelf(progress.Plain, "{cyan-fg}START SWAPPING $PONG -> $PING{/cyan-fg}")
	s.rep.Logf(progress.Plain, "{cyan-fg}--- Start Swapping $PONG -> $PING ---{/cyan-fg}")
	if err != nil {
		return s.fail(err)
	}

	human, err := s.input.Request(ctx, "Amount of $PONG to swap (e.g., 100)", progress.KindNumber, "100")
	if err != nil {
		return s.canceled(err)
	}
	human = strings.TrimSpace(human)
	if _, err := amount.Parse(human); err != nil {
		return s.fail(errors.Wrap(err, "amount to swap"))
	}
	s.rep.Panelf(progress.Plain, "{cyan-fg}Amount to swap: %s $PONG{/cyan-fg}", human)
	s.rep.Logf(progress.Plain, "{cyan-fg}Amount to swap: %s $PONG{/cyan-fg}", human)

	times, err := progress.AskInt(ctx, s.input, "Number of swaps per wallet (default 1)", 1)
	if ctx.Err() != nil {
		return s.canceled(ctx.Err())
	}
	if err != nil || times <= 0 {
		return s.fail(errors.Errorf("swaps per wallet must be a positive whole number"))
	}
	s.rep.Panelf(progress.Plain, "{cyan-fg}Swaps per wallet: %d{/cyan-fg}", times)
	s.rep.Logf(progress.Plain, "{cyan-fg}Swaps per wallet: %d{/cyan-fg}", times)

	if err := s.connect(ctx); err != nil {
		return s.fail(err)
	}

	o := swap.New(s.env.Settings, s.conn, s.submitter(), s.rep)
	o.Rand = s.env.Rand
	o.Sleep = s.env.Sleep
	stats := &txengine.Stats{}

	sum, err := o.Run(ctx, s.wallets, human, times, stats)
	if err != nil {
		return s.canceled(err)
	}
	snap := sum.Stats
	s.rep.Logf(progress.Info, "Transactions │ success: %d │ failed: %d │ pending: %d │ avg confirm: %s",
		snap.Success, snap.Failed, snap.Pending, snap.Average().Round(time.Millisecond))
	s.completed(sum.Successful, sum.Total, "SWAPS SUCCESSFUL")
	return nil
}
