package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

func newRoomCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Create, fund, join, settle and inspect rooms",
	}
	cmd.AddCommand(
		newRoomCreateCmd(c),
		&cobra.Command{
			Use:   "deposit <room> <SOL>",
			Short: "Deposit SOL into a room's vault",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				room, err := parsePubkey(args[0])
				if err != nil {
					return err
				}
				lamports, err := parseSOL(args[1])
				if err != nil {
					return err
				}
				key, err := c.loadSigner()
				if err != nil {
					return err
				}
				ix, err := instruction.NewDepositToVault(pda.ProgramID, key.PublicKey(), room, lamports)
				if err != nil {
					return err
				}
				sig, err := c.send(cmd.Context(), ix)
				if err != nil {
					return err
				}
				c.success("Deposited "+formatSOL(lamports), sig)
				c.field("Vault", ix.Vault)
				return nil
			},
		},
		&cobra.Command{
			Use:   "join <room>",
			Short: "Join a room as a player",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				room, err := parsePubkey(args[0])
				if err != nil {
					return err
				}
				key, err := c.loadSigner()
				if err != nil {
					return err
				}
				ix, err := instruction.NewJoinRoom(pda.ProgramID, key.PublicKey(), room)
				if err != nil {
					return err
				}
				sig, err := c.send(cmd.Context(), ix)
				if err != nil {
					return err
				}
				c.success("Joined room", sig)
				c.field("Participant", ix.Participant)
				return nil
			},
		},
		&cobra.Command{
			Use:   "settle <room>",
			Short: "Close a room after its deadline and reclaim the unpaid vault balance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				room, err := parsePubkey(args[0])
				if err != nil {
					return err
				}
				key, err := c.loadSigner()
				if err != nil {
					return err
				}
				api, err := c.api()
				if err != nil {
					return err
				}
				ix, err := instruction.NewSettleRoom(pda.ProgramID, key.PublicKey(), room)
				if err != nil {
					return err
				}
				before, err := api.Balance(cmd.Context(), ix.Vault)
				if err != nil {
					return err
				}
				sig, err := c.send(cmd.Context(), ix)
				if err != nil {
					return err
				}
				after, err := api.Balance(cmd.Context(), ix.Vault)
				if err != nil {
					return err
				}
				c.success("Room settled", sig)
				c.field("Refund", formatSOL(before-after))
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <room>",
			Short: "Show a room and its vault balance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := parsePubkey(args[0])
				if err != nil {
					return err
				}
				var room state.Room
				if err := c.fetch(cmd.Context(), addr, &room); err != nil {
					return err
				}
				api, err := c.api()
				if err != nil {
					return err
				}
				vault, err := api.Balance(cmd.Context(), room.Vault)
				if err != nil {
					return err
				}
				c.printRoom(addr, &room)
				c.field("Vault balance", formatSOL(vault))
				return nil
			},
		},
	)
	return cmd
}

func newRoomCreateCmd(c *cli) *cobra.Command {
	var (
		roomID, name, pool, deadline string
		threshold                    uint8
		deposit                      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room and its vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			totalPool, err := parseSOL(pool)
			if err != nil {
				return err
			}
			deadlineTs, err := parseDeadline(deadline, time.Now())
			if err != nil {
				return err
			}
			key, err := c.loadSigner()
			if err != nil {
				return err
			}
			create, err := instruction.NewCreateRoom(pda.ProgramID, key.PublicKey(), instruction.CreateRoomArgs{
				RoomID:        roomID,
				Name:          name,
				TotalPool:     totalPool,
				DeadlineTs:    deadlineTs,
				VoteThreshold: threshold,
			})
			if err != nil {
				return err
			}
			ixs := []instruction.Instruction{create}
			if deposit != "" {
				lamports, err := parseSOL(deposit)
				if err != nil {
					return err
				}
				ix, err := instruction.NewDepositToVault(pda.ProgramID, key.PublicKey(), create.Room, lamports)
				if err != nil {
					return err
				}
				ixs = append(ixs, ix)
			}

			sig, err := c.send(cmd.Context(), ixs...)
			if err != nil {
				return err
			}
			c.success("Room created", sig)
			c.field("Room", create.Room)
			c.field("Vault", create.Vault)
			return nil
		},
	}
	cmd.Flags().StringVar(&roomID, "id", "", "room ID, 1 to 32 bytes (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name, at most 64 bytes")
	cmd.Flags().StringVar(&pool, "pool", "", "total prize pool in SOL (required)")
	cmd.Flags().StringVar(&deadline, "deadline", "168h", "deadline as RFC3339, unix seconds or a duration from now")
	cmd.Flags().Uint8Var(&threshold, "threshold", 60, "approval threshold in percent, 1 to 100")
	cmd.Flags().StringVar(&deposit, "deposit", "", "SOL to deposit into the vault in the same transaction")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("pool")
	return cmd
}
