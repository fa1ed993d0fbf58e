package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/parlatech/plenum/internal/ledger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// resolveVoterKey returns the hex private key to sign the vote with, from
// --private-key or a decrypted --keystore file. The keystore passphrase comes
// from --passphrase or an interactive prompt.
func resolveVoterKey(cmd *cobra.Command) (string, error) {
	privateKey, _ := cmd.Flags().GetString("private-key")
	keystorePath, _ := cmd.Flags().GetString("keystore")

	switch {
	case privateKey != "" && keystorePath != "":
		return "", fmt.Errorf("--private-key and --keystore are mutually exclusive")
	case privateKey != "":
		return privateKey, nil
	case keystorePath == "":
		return "", fmt.Errorf("a signing key is required: pass --keystore <file> or --private-key <hex>")
	}

	passphrase, _ := cmd.Flags().GetString("passphrase")
	if !cmd.Flags().Changed("passphrase") {
		p, err := promptPassphrase()
		if err != nil {
			return "", err
		}
		passphrase = p
	}

	raw, err := os.ReadFile(keystorePath)
	if err != nil {
		return "", fmt.Errorf("reading keystore: %w", err)
	}
	key, err := keystore.DecryptKey(raw, passphrase)
	if err != nil {
		return "", fmt.Errorf("decrypting keystore: %w", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key.PrivateKey)), nil
}

func promptPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; pass the passphrase with --passphrase")
	}
	fmt.Fprint(os.Stderr, "Keystore passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ledger.ErrUserRejected
		}
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(b) == 0 {
		return "", ledger.ErrUserRejected
	}
	return string(b), nil
}

var voteCmd = &cobra.Command{
	Use:     "vote",
	Short:   "Cast and inspect votes",
	GroupID: "votes",
}

var voteCastCmd = &cobra.Command{
	Use:   "cast <session-id> <law-id> <choice>",
	Short: "Cast a vote on a law (favor, against, abstain, present, absent)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseLawKey(args[:2])
		if err != nil {
			return err
		}
		choice := args[2]

		voterKey, err := resolveVoterKey(cmd)
		if err != nil {
			return err
		}

		vote, err := engineClient.CastVote(context.Background(), key, choice, voterKey)
		if err != nil {
			return fmt.Errorf("casting vote: %w", err)
		}

		if jsonOutput {
			printJSON(vote)
		} else {
			fmt.Printf("vote recorded: %s voted %s on law %d/%d (tx %s)\n",
				vote.ActorAddress, vote.ChoiceLabel, vote.SessionID, vote.LedgerLawID, vote.TxRef)
		}
		return nil
	},
}

var voteListCmd = &cobra.Command{
	Use:   "list <session-id> <law-id>",
	Short: "List confirmed votes on a law",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseLawKey(args)
		if err != nil {
			return err
		}

		resp, err := engineClient.ListVotes(context.Background(), key)
		if err != nil {
			return fmt.Errorf("listing votes: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
		} else {
			printVoteListTable(resp.Votes, resp.Total)
		}
		return nil
	},
}

var eligibilityCmd = &cobra.Command{
	Use:     "eligibility <address>",
	Short:   "Check whether an address is a registered legislator",
	GroupID: "votes",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := args[0]

		eligible, err := engineClient.Eligibility(context.Background(), address)
		if err != nil {
			return fmt.Errorf("checking eligibility: %w", err)
		}

		if jsonOutput {
			printJSON(map[string]any{"address": address, "eligible": eligible})
		} else if eligible {
			fmt.Printf("%s is a registered legislator\n", address)
		} else {
			fmt.Printf("%s is not a registered legislator\n", address)
		}
		return nil
	},
}

func init() {
	voteCastCmd.Flags().String("private-key", "", "hex private key to sign the vote with")
	voteCastCmd.Flags().String("keystore", "", "path to an encrypted keystore file")
	voteCastCmd.Flags().String("passphrase", "", "keystore passphrase (prompted if omitted)")

	voteCmd.AddCommand(voteCastCmd)
	voteCmd.AddCommand(voteListCmd)
}
