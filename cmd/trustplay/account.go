package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/trustplay/client"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

func newReputationCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reputation [player]",
		Short: "Show a player's reputation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := c.addressArg(args, 0)
			if err != nil {
				return err
			}
			addr, _, err := pda.DeriveReputation(pda.ProgramID, player)
			if err != nil {
				return err
			}
			var rep state.Reputation
			if err := c.fetch(cmd.Context(), addr, &rep); err != nil {
				return err
			}
			c.title("Reputation")
			c.field("Player", rep.Player)
			c.field("Score", rep.Score)
			c.field("Wins", rep.Wins)
			return nil
		},
	}
}

func newAccountCmd(c *cli) *cobra.Command {
	var (
		kind, memcmp string
		raw          bool
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "account [address]",
		Short: "Dump an account, or list program accounts with --kind/--memcmp",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				addr, err := parsePubkey(args[0])
				if err != nil {
					return err
				}
				acct, err := api.GetAccount(cmd.Context(), addr)
				if err != nil {
					return err
				}
				return c.printAccount(acct, raw)
			}

			q := client.ProgramAccountsQuery{Kind: state.Kind(kind), Limit: limit}
			if memcmp != "" {
				m, err := parseMemcmp(memcmp)
				if err != nil {
					return err
				}
				q.Memcmp = append(q.Memcmp, m)
			}
			page, err := api.ProgramAccounts(cmd.Context(), q)
			if err != nil {
				return err
			}
			c.title(fmt.Sprintf("%d of %d accounts", len(page.Accounts), page.Total))
			for _, acct := range page.Accounts {
				c.field(string(acct.Kind), acct.Address)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "account kind: whitelist, room, participant, claim, voter, reputation")
	cmd.Flags().StringVar(&memcmp, "memcmp", "", "filter as offset:base58")
	cmd.Flags().BoolVar(&raw, "raw", false, "print account data as base58 instead of decoding it")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum accounts to list")
	return cmd
}

func parseMemcmp(s string) (client.Memcmp, error) {
	offset, encoded, ok := strings.Cut(s, ":")
	if !ok {
		return client.Memcmp{}, fmt.Errorf("memcmp must be offset:base58, got %q", s)
	}
	var m client.Memcmp
	if _, err := fmt.Sscanf(offset, "%d", &m.Offset); err != nil {
		return client.Memcmp{}, fmt.Errorf("invalid memcmp offset %q", offset)
	}
	b, err := base58.Decode(encoded)
	if err != nil || len(b) == 0 {
		return client.Memcmp{}, fmt.Errorf("invalid memcmp bytes %q", encoded)
	}
	m.Bytes = b
	return m, nil
}

func (c *cli) printAccount(acct *client.Account, raw bool) error {
	c.title("Account " + acct.Address.String())
	c.field("Owner", acct.Owner)
	c.field("Balance", formatSOL(acct.Lamports))
	c.field("Space", acct.Space)
	if acct.Kind == "" || raw {
		if len(acct.Data) > 0 {
			c.field("Data", base58.Encode(acct.Data))
		}
		return nil
	}
	c.field("Kind", acct.Kind)
	_, parsed, err := state.DecodeAny(acct.Data)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, string(out))
	return nil
}

func newPDACmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pda <kind> [key=value]...",
		Short: "Derive a program address through the API",
		Long: `Derive a program address. Kinds and their parameters:
  whitelist
  room         organizer=<pubkey> roomId=<id>
  vault        room=<pubkey>
  participant  room=<pubkey> player=<pubkey>
  claim        room=<pubkey> claimant=<pubkey> claimId=<id>
  voter        claim=<pubkey> voter=<pubkey>
  reputation   player=<pubkey>`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make(map[string]string, len(args)-1)
			for _, kv := range args[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", kv)
				}
				params[k] = v
			}
			api, err := c.api()
			if err != nil {
				return err
			}
			addr, bump, err := api.PDA(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			c.field("Address", addr)
			c.field("Bump", bump)
			return nil
		},
	}
}
