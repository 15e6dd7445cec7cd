package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/ligun0805/somnia-runner/internal/config"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/scripts"
)

var usages = map[string]string{
	scripts.Swapping:      "approve the router and swap $PONG for $PING with every wallet",
	scripts.MintPing:      "mint 1000 $PING to every wallet",
	scripts.MintSUSDT:     "mint sUSDT once for every wallet that holds none",
	scripts.NFTCollection: "deploy an NFT collection, or mint or burn a token",
}

func main() {
	app := cli.NewApp()
	app.Name = "somniacli"
	app.Usage = "Somnia testnet wallet automation"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "env", Value: ".env", Usage: "dotenv file loaded before the environment"},
		cli.StringFlag{Name: "keys", Usage: "private key file, overrides KEY_FILE"},
		cli.StringFlag{Name: "log-file", Usage: "JSON run log, overrides LOG_FILE"},
		cli.BoolFlag{Name: "no-shuffle", Usage: "keep wallets in file order"},
		cli.BoolFlag{Name: "yes, y", Usage: "accept every prompt default"},
	}

	names := make([]string, 0, len(scripts.Runs))
	for name := range scripts.Runs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		run := scripts.Runs[name]
		app.Commands = append(app.Commands, cli.Command{
			Name:   name,
			Usage:  usages[name],
			Action: func(c *cli.Context) error { return runScript(c, run) },
		})
	}

	if err := app.Run(os.Args); err != nil {
		die(err.Error())
	}
}

func runScript(c *cli.Context, run func(context.Context, scripts.Env) error) error {
	st, err := config.Load(c.GlobalString("env"))
	if err != nil {
		return errors.Wrap(err, "config")
	}
	if v := strings.TrimSpace(c.GlobalString("keys")); v != "" {
		st.KeyFile = v
	}
	if v := strings.TrimSpace(c.GlobalString("log-file")); v != "" {
		st.LogFile = v
	}
	if c.GlobalBool("no-shuffle") {
		st.ShuffleWallets = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := progress.Stdout()
	env := scripts.Env{Settings: st, Log: console, Panel: panelOnly{console}}
	if !c.GlobalBool("yes") {
		env.Input = progress.NewLineInput(os.Stdin, os.Stdout)
	}
	if err := run(ctx, env); err != nil {
		return errors.Wrap(err, "run failed")
	}
	return nil
}
