package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/iudanet/peersync/internal/client/iocli"
	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/node"
	"github.com/iudanet/peersync/internal/validation"
)

type initView struct {
	NodeID      string
	Account     string
	Fingerprint string
	Salt        string
}

// runInit создает identity узла. Демон при этом должен быть остановлен.
func (c *Cli) runInit(ctx context.Context, args []string) error {
	fs := newFlagSet("init")
	account := fs.String("account", c.cfg.Node.Account, "account name")
	salt := fs.String("salt", "", "account salt (base64) from the first device")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	name := strings.TrimSpace(*account)
	if name == "" {
		input, err := c.io.ReadInput("Account: ")
		if err != nil {
			return fmt.Errorf("failed to read account: %w", err)
		}
		name = input
	}
	if err := validation.ValidateAccount(name); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	passphrase, err := iocli.ReadNewPassphrase(c.io, c.passphraseFile)
	if err != nil {
		return err
	}
	if err := validation.ValidatePassphrase(passphrase); err != nil {
		return fmt.Errorf("invalid passphrase: %w", err)
	}

	id, err := node.Init(ctx, c.cfg, node.InitRequest{
		Account:    name,
		Passphrase: passphrase,
		Salt:       *salt,
	}, c.logger)
	if err != nil {
		return err
	}

	return c.render("init", initTemplate, initView{
		NodeID:      id.NodeID,
		Account:     id.Account,
		Fingerprint: crypto.Fingerprint(id.PublicKey),
		Salt:        base64.StdEncoding.EncodeToString(id.Salt),
	})
}
