// Package cli команды peersync поверх управляющего API узла.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"text/template"

	"github.com/iudanet/peersync/internal/client/iocli"
	"github.com/iudanet/peersync/internal/config"
	"github.com/iudanet/peersync/pkg/api"
)

// NodeAPI операции управляющего API, которые использует CLI
type NodeAPI interface {
	Status(ctx context.Context) (*api.StatusResponse, error)
	PutRecord(ctx context.Context, id string, req api.PutRecordRequest) (*api.Record, error)
	GetRecord(ctx context.Context, id string) (*api.Record, error)
	DeleteRecord(ctx context.Context, id string) (*api.Record, error)
	ListRecords(ctx context.Context, includeDeleted bool) (*api.RecordList, error)
	Audit(ctx context.Context, id string) (*api.AuditList, error)
	Peers(ctx context.Context) (*api.PeerList, error)
	Pin(ctx context.Context, nodeID, publicKeyHex string) (*api.Peer, error)
	Sync(ctx context.Context, req api.SyncRequest) (*api.SessionList, error)
	Sessions(ctx context.Context, limit int) (*api.SessionList, error)
	Session(ctx context.Context, id string) (*api.Session, error)
	CancelSession(ctx context.Context, id string) (*api.Session, error)
	ResumeSession(ctx context.Context, id string) (*api.Session, error)
	Config(ctx context.Context) (*api.SyncSettings, error)
	UpdateConfig(ctx context.Context, settings api.SyncSettings) (*api.SyncSettings, error)
	Export(ctx context.Context) (*api.Export, error)
}

// ErrUsage команда вызвана с неверными аргументами
var ErrUsage = errors.New("invalid usage")

// Cli выполняет команды
type Cli struct {
	io             iocli.IO
	api            NodeAPI
	cfg            *config.Config
	logger         *slog.Logger
	passphraseFile string
}

// New создает CLI. nodeAPI может быть nil для команд, которым не нужен узел (init).
func New(io iocli.IO, nodeAPI NodeAPI, cfg *config.Config, logger *slog.Logger, passphraseFile string) *Cli {
	return &Cli{
		io:             io,
		api:            nodeAPI,
		cfg:            cfg,
		logger:         logger,
		passphraseFile: passphraseFile,
	}
}

// NeedsNode сообщает, требуется ли команде запущенный узел
func NeedsNode(command string) bool {
	return command != "init" && command != "help"
}

// Run выполняет команду args[0] с аргументами args[1:]
func (c *Cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.PrintUsage()
		return ErrUsage
	}

	command, rest := args[0], args[1:]
	if NeedsNode(command) && c.api == nil {
		return errors.New("control api client is not configured")
	}

	switch command {
	case "help":
		c.PrintUsage()
		return nil
	case "init":
		return c.runInit(ctx, rest)
	case "status":
		return c.runStatus(ctx)
	case "put":
		return c.runPut(ctx, rest)
	case "get":
		return c.runGet(ctx, rest)
	case "list":
		return c.runList(ctx, rest)
	case "delete":
		return c.runDelete(ctx, rest)
	case "audit":
		return c.runAudit(ctx, rest)
	case "peers":
		return c.runPeers(ctx)
	case "pin":
		return c.runPin(ctx, rest)
	case "sync":
		return c.runSync(ctx, rest)
	case "sessions":
		return c.runSessions(ctx, rest)
	case "session":
		return c.runSession(ctx, rest)
	case "cancel":
		return c.runCancel(ctx, rest)
	case "resume":
		return c.runResume(ctx, rest)
	case "config":
		return c.runConfig(ctx, rest)
	case "export":
		return c.runExport(ctx)
	default:
		c.PrintUsage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
}

// PrintUsage выводит справку
func (c *Cli) PrintUsage() {
	c.io.Printf("%s", usageTemplate)
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// render выполняет шаблон в вывод CLI
func (c *Cli) render(name, text string, data any) error {
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	if err := tmpl.Execute(c.io, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

// newFlagSet создает набор флагов подкоманды, ошибки возвращаются вызывающему
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func requireArgs(fs *flag.FlagSet, n int, usage string) error {
	if fs.NArg() < n {
		return fmt.Errorf("%w: peersync %s", ErrUsage, usage)
	}
	return nil
}
