package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/iudanet/peersync/pkg/api"
)

func (c *Cli) runPut(ctx context.Context, args []string) error {
	fs := newFlagSet("put")
	recordType := fs.String("type", "note", "record type")
	file := fs.String("file", "", "read payload from file")
	version := fs.Uint64("version", 0, "explicit version (0 - next)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := requireArgs(fs, 1, "put [--type T] [--file F] ID [TEXT]"); err != nil {
		return err
	}

	id := fs.Arg(0)
	var payload []byte
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("failed to read payload file: %w", err)
		}
		payload = data
	} else {
		text := strings.Join(fs.Args()[1:], " ")
		if text == "" {
			return fmt.Errorf("%w: missing payload, pass TEXT or --file", ErrUsage)
		}
		payload = []byte(text)
	}

	rec, err := c.api.PutRecord(ctx, id, api.PutRecordRequest{
		Type:    *recordType,
		Payload: payload,
		Version: *version,
	})
	if err != nil {
		return err
	}
	return c.render("saved", savedTemplate, rec)
}

func (c *Cli) runGet(ctx context.Context, args []string) error {
	fs := newFlagSet("get")
	raw := fs.Bool("raw", false, "print payload only")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := requireArgs(fs, 1, "get [--raw] ID"); err != nil {
		return err
	}

	rec, err := c.api.GetRecord(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *raw {
		_, err := c.io.Write(rec.Payload)
		return err
	}
	return c.render("record", recordTemplate, rec)
}

func (c *Cli) runList(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	deleted := fs.Bool("deleted", false, "include deleted records")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	list, err := c.api.ListRecords(ctx, *deleted)
	if err != nil {
		return err
	}
	return c.render("records", recordListTemplate, list.Records)
}

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("delete")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := requireArgs(fs, 1, "delete ID"); err != nil {
		return err
	}

	rec, err := c.api.DeleteRecord(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return c.render("deleted", deletedTemplate, rec)
}

func (c *Cli) runAudit(ctx context.Context, args []string) error {
	fs := newFlagSet("audit")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := requireArgs(fs, 1, "audit ID"); err != nil {
		return err
	}

	list, err := c.api.Audit(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return c.render("audit", auditTemplate, list.Entries)
}
