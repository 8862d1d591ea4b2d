package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/config"
	"github.com/crosslink-relay/relayer/indexer"
	"github.com/crosslink-relay/relayer/store"
)

var dbInspectCommand = &cli.Command{
	Name:        "db-inspect",
	Description: "print a single origin domain's indexing and delivery state",
	Action:      dbInspectAction,
	Flags: []cli.Flag{
		configFlag,
		&cli.Uint64Flag{Name: "origin", Usage: "origin domain id to inspect", Required: true},
		&cli.Uint64Flag{Name: "nonce", Usage: "print one message's status instead of the domain summary"},
	},
}

var resetCursorsCommand = &cli.Command{
	Name:        "reset-cursors",
	Description: "reset a chain's indexing cursor back to its configured from_block",
	Action:      resetCursorsAction,
	Flags: []cli.Flag{
		configFlag,
		&cli.StringFlag{Name: "chain", Usage: "chain name (as it appears under [chains.<name>] in the config)", Required: true},
	},
}

func dbInspectAction(cliCtx *cli.Context) error {
	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return cli.Exit(fmt.Errorf("loading config: %w", err), 1)
	}
	st, err := openStore(cfg, log.Root())
	if err != nil {
		return cli.Exit(fmt.Errorf("opening store: %w", err), 1)
	}
	defer st.Close()

	view := store.NewMessageView(st)
	origin := uint32(cliCtx.Uint64("origin"))
	ctx := cliCtx.Context

	if cliCtx.IsSet("nonce") {
		nonce := uint32(cliCtx.Uint64("nonce"))
		msg, ok, err := view.MessageByNonce(ctx, origin, nonce)
		if err != nil {
			return cli.Exit(err, 2)
		}
		if !ok {
			fmt.Printf("origin %d nonce %d: not indexed\n", origin, nonce)
			return nil
		}
		processed, status, hasStatus, err := view.DeliveryStatus(ctx, origin, msg.ID())
		if err != nil {
			return cli.Exit(err, 2)
		}
		fmt.Printf("origin %d nonce %d: id=%s destination=%d processed=%v", origin, nonce, msg.ID(), msg.Destination, processed)
		if hasStatus {
			fmt.Printf(" status=%s", status.Kind)
		}
		fmt.Println()
		return nil
	}

	lastNonce, err := view.LastNonce(ctx, origin)
	if err != nil {
		return cli.Exit(err, 2)
	}
	if lastNonce == nil {
		fmt.Printf("origin %d: no messages indexed\n", origin)
		return nil
	}
	fmt.Printf("origin %d: highest seen nonce = %d\n", origin, *lastNonce)
	return nil
}

func resetCursorsAction(cliCtx *cli.Context) error {
	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return cli.Exit(fmt.Errorf("loading config: %w", err), 1)
	}
	chainName := cliCtx.String("chain")
	cc, ok := cfg.Chains[chainName]
	if !ok {
		return cli.Exit(fmt.Errorf("no chain named %q in config", chainName), 1)
	}

	st, err := openStore(cfg, log.Root())
	if err != nil {
		return cli.Exit(fmt.Errorf("opening store: %w", err), 1)
	}
	defer st.Close()

	key := indexer.MessageSnapshotKey(cc.DomainID)
	snap := chaintypes.LastIndexedSnapshot{Sequence: nil, AtBlock: cc.Index.FromBlock}
	if err := st.PutLastIndexedSnapshot(cliCtx.Context, key, snap); err != nil {
		return cli.Exit(fmt.Errorf("resetting cursor for %s: %w", chainName, err), 2)
	}
	fmt.Printf("chain %s (domain %d): cursor reset to from_block=%d\n", chainName, cc.DomainID, cc.Index.FromBlock)
	return nil
}
