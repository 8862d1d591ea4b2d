// Command relayer is the CLI entrypoint: it loads a TOML config, wires
// the chain adapters, cursors, message processor, op-queues, and
// inclusion stage described throughout this module, and runs them until
// signalled to stop.
//
// Exit codes: 0 on a clean shutdown (SIGINT/SIGTERM), 1 if construction
// fails before anything starts running, 2 if db-inspect or reset-cursors
// fails reading or writing the store. run's component loops log their
// failures and keep going, so run itself exits with 0 or 1.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:     "config",
	Usage:    "path to the relayer's TOML config file",
	Aliases:  []string{"c"},
	Required: true,
}

func main() {
	app := &cli.App{
		Name:  "relayer",
		Usage: "cross-chain message relayer",
		Commands: []*cli.Command{
			runCommand,
			dbInspectCommand,
			resetCursorsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Root().Error("relayer exiting", "err", err)
		if code, ok := err.(cli.ExitCoder); ok {
			os.Exit(code.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
