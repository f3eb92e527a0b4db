package main

import (
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

func newClaimCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Submit, vote on and resolve claims",
	}
	cmd.AddCommand(
		newClaimSubmitCmd(c),
		newClaimVoteCmd(c),
		&cobra.Command{
			Use:   "resolve <room> <claim-id>",
			Short: "Tally votes on your claim and collect the reward if approved",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				room, err := parsePubkey(args[0])
				if err != nil {
					return err
				}
				key, err := c.loadSigner()
				if err != nil {
					return err
				}
				claimAddr, _, err := pda.DeriveClaim(pda.ProgramID, room, key.PublicKey(), args[1])
				if err != nil {
					return err
				}
				ix, err := instruction.NewResolveClaim(pda.ProgramID, key.PublicKey(), room, claimAddr)
				if err != nil {
					return err
				}
				sig, err := c.send(cmd.Context(), ix)
				if err != nil {
					return err
				}
				c.success("Claim resolved", sig)

				var claim state.Claim
				if err := c.fetch(cmd.Context(), claimAddr, &claim); err != nil {
					return err
				}
				c.printClaim(claimAddr, &claim)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <room> <claimant> <claim-id>",
			Short: "Show a claim and its tally",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := claimAddress(args[0], args[1], args[2])
				if err != nil {
					return err
				}
				var claim state.Claim
				if err := c.fetch(cmd.Context(), addr, &claim); err != nil {
					return err
				}
				c.printClaim(addr, &claim)
				return nil
			},
		},
	)
	return cmd
}

func claimAddress(roomArg, claimantArg, claimID string) (solana.PublicKey, error) {
	room, err := parsePubkey(roomArg)
	if err != nil {
		return solana.PublicKey{}, err
	}
	claimant, err := parsePubkey(claimantArg)
	if err != nil {
		return solana.PublicKey{}, err
	}
	addr, _, err := pda.DeriveClaim(pda.ProgramID, room, claimant, claimID)
	return addr, err
}

func newClaimSubmitCmd(c *cli) *cobra.Command {
	var proof string
	cmd := &cobra.Command{
		Use:   "submit <room> <claim-id>",
		Short: "Submit a claim in a room you joined",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := parsePubkey(args[0])
			if err != nil {
				return err
			}
			key, err := c.loadSigner()
			if err != nil {
				return err
			}
			ix, err := instruction.NewSubmitClaim(pda.ProgramID, key.PublicKey(), room, args[1], proof)
			if err != nil {
				return err
			}
			sig, err := c.send(cmd.Context(), ix)
			if err != nil {
				return err
			}
			c.success("Claim submitted", sig)
			c.field("Claim", ix.Claim)
			return nil
		},
	}
	cmd.Flags().StringVar(&proof, "proof", "", "proof hash or content ID, at most 50 bytes")
	return cmd
}

func newClaimVoteCmd(c *cli) *cobra.Command {
	var reject bool
	cmd := &cobra.Command{
		Use:   "vote <room> <claimant> <claim-id>",
		Short: "Vote on a claim as a whitelisted voter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := parsePubkey(args[0])
			if err != nil {
				return err
			}
			claimant, err := parsePubkey(args[1])
			if err != nil {
				return err
			}
			key, err := c.loadSigner()
			if err != nil {
				return err
			}
			claimAddr, _, err := pda.DeriveClaim(pda.ProgramID, room, claimant, args[2])
			if err != nil {
				return err
			}
			ix, err := instruction.NewVoteClaim(pda.ProgramID, key.PublicKey(), room, claimAddr, claimant, !reject)
			if err != nil {
				return err
			}
			sig, err := c.send(cmd.Context(), ix)
			if err != nil {
				return err
			}
			verdict := "approve"
			if reject {
				verdict = "reject"
			}
			c.success("Voted to "+verdict, sig)
			c.field("Voter record", ix.VoterRecord)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reject, "reject", false, "vote against the claim")
	return cmd
}
