package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

func newWhitelistCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage the voter whitelist",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the whitelist with the keypair as authority",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := c.loadSigner()
				if err != nil {
					return err
				}
				ix, err := instruction.NewInitializeWhitelist(pda.ProgramID, key.PublicKey())
				if err != nil {
					return err
				}
				sig, err := c.send(cmd.Context(), ix)
				if err != nil {
					return err
				}
				c.success("Whitelist initialized", sig)
				c.field("Address", ix.Whitelist)
				return nil
			},
		},
		newWhitelistUpdateCmd(c, "add", "Add voters to the whitelist", func(authority, voter solana.PublicKey) (instruction.Instruction, error) {
			return instruction.NewAddToWhitelist(pda.ProgramID, authority, voter)
		}),
		newWhitelistUpdateCmd(c, "remove", "Remove voters from the whitelist", func(authority, voter solana.PublicKey) (instruction.Instruction, error) {
			return instruction.NewRemoveFromWhitelist(pda.ProgramID, authority, voter)
		}),
		&cobra.Command{
			Use:   "show",
			Short: "List whitelisted voters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, _, err := pda.DeriveWhitelist(pda.ProgramID)
				if err != nil {
					return err
				}
				var wl state.Whitelist
				if err := c.fetch(cmd.Context(), addr, &wl); err != nil {
					return err
				}
				c.title(fmt.Sprintf("Whitelist (%d voters)", len(wl.Addresses)))
				c.field("Address", addr)
				c.field("Authority", wl.Authority)
				for i, voter := range wl.Addresses {
					c.field(fmt.Sprintf("#%d", i+1), voter)
				}
				return nil
			},
		},
	)
	return cmd
}

func newWhitelistUpdateCmd(c *cli, use, short string, build func(authority, voter solana.PublicKey) (instruction.Instruction, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <address>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.loadSigner()
			if err != nil {
				return err
			}
			ixs := make([]instruction.Instruction, 0, len(args))
			for _, arg := range args {
				voter, err := parsePubkey(arg)
				if err != nil {
					return err
				}
				ix, err := build(key.PublicKey(), voter)
				if err != nil {
					return err
				}
				ixs = append(ixs, ix)
			}
			sig, err := c.send(cmd.Context(), ixs...)
			if err != nil {
				return err
			}
			c.success(fmt.Sprintf("Whitelist updated (%s %d)", use, len(ixs)), sig)
			return nil
		},
	}
}

// fetch reads addr through the API and decodes it into acct.
func (c *cli) fetch(ctx context.Context, addr solana.PublicKey, acct state.Account) error {
	api, err := c.api()
	if err != nil {
		return err
	}
	raw, err := api.GetAccount(ctx, addr)
	if err != nil {
		return err
	}
	return raw.Decode(acct)
}
