package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/peersync/pkg/api"
)

func (c *Cli) runSync(ctx context.Context, args []string) error {
	fs := newFlagSet("sync")
	wait := fs.Bool("wait", false, "wait for sessions to finish")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	list, err := c.api.Sync(ctx, api.SyncRequest{NodeID: fs.Arg(0), Wait: *wait})
	if err != nil {
		return err
	}
	if !*wait {
		c.io.Printf("Started %d session(s). Use 'peersync sessions' to follow progress.\n", len(list.Sessions))
	}
	return c.render("sessions", sessionListTemplate, list.Sessions)
}

func (c *Cli) runSessions(ctx context.Context, args []string) error {
	fs := newFlagSet("sessions")
	limit := fs.Int("limit", 0, "number of sessions to show")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	list, err := c.api.Sessions(ctx, *limit)
	if err != nil {
		return err
	}
	return c.render("sessions", sessionListTemplate, list.Sessions)
}

// sessionCommand общая часть session, cancel и resume
func (c *Cli) sessionCommand(ctx context.Context, name string, args []string, call func(context.Context, string) (*api.Session, error)) error {
	fs := newFlagSet(name)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := requireArgs(fs, 1, name+" ID"); err != nil {
		return err
	}

	s, err := call(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return c.render("session", sessionTemplate, s)
}

func (c *Cli) runSession(ctx context.Context, args []string) error {
	return c.sessionCommand(ctx, "session", args, c.api.Session)
}

func (c *Cli) runCancel(ctx context.Context, args []string) error {
	return c.sessionCommand(ctx, "cancel", args, c.api.CancelSession)
}

func (c *Cli) runResume(ctx context.Context, args []string) error {
	return c.sessionCommand(ctx, "resume", args, c.api.ResumeSession)
}
