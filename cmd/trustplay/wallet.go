package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

// writeKeygenFile stores key in the solana-keygen JSON array format.
func writeKeygenFile(path string, key solana.PrivateKey) error {
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func newKeygenCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new keypair at the --keypair path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(c.keypair); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", c.keypair)
			}
			w := solana.NewWallet()
			if err := writeKeygenFile(c.keypair, w.PrivateKey); err != nil {
				return fmt.Errorf("failed to write keypair: %w", err)
			}
			c.title("New keypair")
			c.field("Address", w.PublicKey())
			c.field("File", c.keypair)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing keypair file")
	return cmd
}

func newAddressCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the keypair's address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.loadSigner()
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, key.PublicKey())
			return nil
		},
	}
}

func newAirdropCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <SOL> [address]",
		Short: "Request SOL from the development faucet",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := parseSOL(args[0])
			if err != nil {
				return err
			}
			addr, err := c.addressArg(args, 1)
			if err != nil {
				return err
			}
			api, err := c.api()
			if err != nil {
				return err
			}
			balance, err := api.Airdrop(cmd.Context(), addr, lamports)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, successStyle.Render("✔ Airdropped "+formatSOL(lamports)))
			c.field("Address", addr)
			c.field("Balance", formatSOL(balance))
			return nil
		},
	}
}

func newBalanceCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the SOL balance of an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := c.addressArg(args, 0)
			if err != nil {
				return err
			}
			api, err := c.api()
			if err != nil {
				return err
			}
			balance, err := api.Balance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, formatSOL(balance))
			return nil
		},
	}
}

// addressArg parses args[i] as a public key, defaulting to the keypair's
// address when absent.
func (c *cli) addressArg(args []string, i int) (solana.PublicKey, error) {
	if len(args) > i {
		pk, err := solana.PublicKeyFromBase58(args[i])
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", args[i], err)
		}
		return pk, nil
	}
	key, err := c.loadSigner()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

func parsePubkey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}
