package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iudanet/peersync/pkg/api"
)

func (c *Cli) runStatus(ctx context.Context) error {
	status, err := c.api.Status(ctx)
	if err != nil {
		return err
	}
	return c.render("status", statusTemplate, status)
}

func (c *Cli) runExport(ctx context.Context) error {
	exp, err := c.api.Export(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	_, err = c.io.Write(append(data, '\n'))
	return err
}

// runConfig без аргументов показывает настройки, с KEY=VALUE изменяет их
func (c *Cli) runConfig(ctx context.Context, args []string) error {
	settings, err := c.api.Config(ctx)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		for _, arg := range args {
			if err := applySetting(settings, arg); err != nil {
				return err
			}
		}
		settings, err = c.api.UpdateConfig(ctx, *settings)
		if err != nil {
			return err
		}
	}

	return c.render("settings", settingsTemplate, settings)
}

// applySetting применяет одну пару KEY=VALUE
func applySetting(s *api.SyncSettings, arg string) error {
	key, value, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("%w: expected KEY=VALUE, got %q", ErrUsage, arg)
	}

	var err error
	switch strings.TrimSpace(key) {
	case "sync_interval_ms":
		s.SyncIntervalMs, err = strconv.ParseInt(value, 10, 64)
	case "max_connections":
		s.MaxConnections, err = strconv.Atoi(value)
	case "data_retention_days":
		s.DataRetentionDays, err = strconv.Atoi(value)
	case "auto_sync":
		s.AutoSync, err = strconv.ParseBool(value)
	case "encryption_enabled":
		s.EncryptionEnabled, err = strconv.ParseBool(value)
	case "p2p_enabled":
		s.P2PEnabled, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("%w: unknown setting %q", ErrUsage, key)
	}
	if err != nil {
		return fmt.Errorf("%w: invalid value for %s: %w", ErrUsage, key, err)
	}
	return nil
}
