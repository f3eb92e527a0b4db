package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/trustplay/client"
	"github.com/malbeclabs/trustplay/program/pkg/instruction"
	"github.com/malbeclabs/trustplay/program/pkg/pda"
	"github.com/malbeclabs/trustplay/utils/pkg/logger"
)

// cli holds the global flags and the lazily built API client.
type cli struct {
	apiURL  string
	keypair string
	verbose bool

	out    io.Writer
	log    *slog.Logger
	client *client.Client
	signer solana.PrivateKey
}

func defaultKeypairPath() string {
	if p := os.Getenv("TRUSTPLAY_KEYPAIR"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "id.json"
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "trustplay",
		Short:         "TrustPlay CLI manages escrow rooms, claims and votes.",
		Long:          `A command-line client for the TrustPlay escrow program: create rooms, fund vaults, submit claims, vote on them and settle payouts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			c.out = cmd.OutOrStdout()
			c.log = logger.NewWithWriter(cmd.ErrOrStderr(), c.verbose)
			if !cmd.Flags().Changed("api-url") {
				c.apiURL = client.URLFromEnv()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.apiURL, "api-url", client.DefaultURL, "TrustPlay API URL (or set TRUSTPLAY_API_URL env var)")
	root.PersistentFlags().StringVarP(&c.keypair, "keypair", "k", defaultKeypairPath(), "signer keypair file (or set TRUSTPLAY_KEYPAIR env var)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose (debug) logging")

	root.AddCommand(
		newKeygenCmd(c),
		newAddressCmd(c),
		newAirdropCmd(c),
		newBalanceCmd(c),
		newWhitelistCmd(c),
		newRoomCmd(c),
		newClaimCmd(c),
		newReputationCmd(c),
		newAccountCmd(c),
		newPDACmd(c),
	)
	return root
}

func (c *cli) api() (*client.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	cl, err := client.New(client.Config{Logger: c.log, BaseURL: c.apiURL})
	if err != nil {
		return nil, err
	}
	c.client = cl
	return cl, nil
}

func (c *cli) loadSigner() (solana.PrivateKey, error) {
	if c.signer != nil {
		return c.signer, nil
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(c.keypair)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", c.keypair, err)
	}
	c.signer = key
	return key, nil
}

// send builds, signs and submits one transaction paid and signed by the
// keypair.
func (c *cli) send(ctx context.Context, ixs ...instruction.Instruction) (solana.Signature, error) {
	signer, err := c.loadSigner()
	if err != nil {
		return solana.Signature{}, err
	}
	api, err := c.api()
	if err != nil {
		return solana.Signature{}, err
	}

	built := make([]solana.Instruction, 0, len(ixs))
	for _, ix := range ixs {
		b, err := instruction.Build(pda.ProgramID, ix)
		if err != nil {
			return solana.Signature{}, err
		}
		built = append(built, b)
	}
	latest, err := api.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}
	tx, err := solana.NewTransaction(built, latest.Hash, solana.TransactionPayer(signer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := api.SubmitTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	c.log.Debug("transaction submitted", "signature", sig, "instructions", len(ixs))
	return sig, nil
}

func (c *cli) success(msg string, sig solana.Signature) {
	fmt.Fprintln(c.out, successStyle.Render("✔ "+msg))
	c.field("Signature", sig.String())
}

func (c *cli) title(s string) {
	fmt.Fprintln(c.out, titleStyle.Render(s))
}

func (c *cli) field(label string, value any) {
	fmt.Fprintln(c.out, labelStyle.Render(label)+fmt.Sprint(value))
}
