package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runPeers(ctx context.Context) error {
	list, err := c.api.Peers(ctx)
	if err != nil {
		return err
	}
	return c.render("peers", peerListTemplate, list.Peers)
}

func (c *Cli) runPin(ctx context.Context, args []string) error {
	fs := newFlagSet("pin")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := requireArgs(fs, 2, "pin NODE_ID PUBLIC_KEY_HEX"); err != nil {
		return err
	}

	peer, err := c.api.Pin(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	return c.render("pinned", pinnedTemplate, peer)
}
