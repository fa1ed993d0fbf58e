package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parlatech/plenum/internal/client"
	"github.com/parlatech/plenum/internal/model"
	"github.com/spf13/cobra"
)

func parseLawKey(args []string) (model.LawKey, error) {
	sid, err := parseID(args[0], "session id")
	if err != nil {
		return model.LawKey{}, err
	}
	lid, err := parseID(args[1], "law id")
	if err != nil {
		return model.LawKey{}, err
	}
	return model.LawKey{SessionID: sid, LedgerLawID: lid}, nil
}

// lawRequestFromFlags builds the law payload shared by add and update.
func lawRequestFromFlags(cmd *cobra.Command, title string) (*client.AddLawRequest, error) {
	description, _ := cmd.Flags().GetString("description")
	author, _ := cmd.Flags().GetString("author")
	party, _ := cmd.Flags().GetString("party")
	category, _ := cmd.Flags().GetString("category")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	docs, _ := cmd.Flags().GetString("docs")

	req := &client.AddLawRequest{
		Title:       title,
		Description: description,
		Author:      author,
		Party:       party,
		Category:    category,
		Tags:        tags,
	}
	if docs != "" {
		if !json.Valid([]byte(docs)) {
			return nil, fmt.Errorf("invalid --docs: expected a JSON value")
		}
		req.DocumentRefs = json.RawMessage(docs)
	}
	return req, nil
}

var lawCmd = &cobra.Command{
	Use:     "law",
	Short:   "Manage law proposals",
	GroupID: "laws",
}

var lawAddCmd = &cobra.Command{
	Use:   "add <session-id> <title>",
	Short: "Add a law proposal to a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID(args[0], "session id")
		if err != nil {
			return err
		}
		req, err := lawRequestFromFlags(cmd, args[1])
		if err != nil {
			return err
		}

		law, err := engineClient.AddLaw(context.Background(), sessionID, req)
		if err != nil {
			return fmt.Errorf("adding law: %w", err)
		}

		if jsonOutput {
			printJSON(law)
		} else {
			fmt.Printf("law %d/%d added: %s\n", law.SessionID, law.LedgerLawID, law.Title)
		}
		return nil
	},
}

var lawListCmd = &cobra.Command{
	Use:   "list",
	Short: "List laws with filtering and pagination",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.ListLawsRequest{}

		if cmd.Flags().Changed("session") {
			sid, _ := cmd.Flags().GetUint64("session")
			req.SessionID = &sid
		}
		req.Status, _ = cmd.Flags().GetStringSlice("status")
		req.FinalStatus, _ = cmd.Flags().GetStringSlice("final-status")
		req.Category, _ = cmd.Flags().GetStringSlice("category")
		req.Author, _ = cmd.Flags().GetString("author")
		if cmd.Flags().Changed("active") {
			active, _ := cmd.Flags().GetBool("active")
			req.Active = &active
		}
		req.Search, _ = cmd.Flags().GetString("search")
		req.Sort, _ = cmd.Flags().GetString("sort")
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Offset, _ = cmd.Flags().GetInt("offset")

		resp, err := engineClient.ListLaws(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing laws: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
		} else {
			printLawListTable(resp.Laws, resp.Total, resp.CurrentPage, resp.TotalPages)
		}
		return nil
	},
}

var lawShowCmd = &cobra.Command{
	Use:   "show <session-id> <law-id>",
	Short: "Show one law",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseLawKey(args)
		if err != nil {
			return err
		}

		law, err := engineClient.GetLaw(context.Background(), key)
		if err != nil {
			return fmt.Errorf("fetching law: %w", err)
		}

		if jsonOutput {
			printJSON(law)
		} else {
			printLawTable(law)
		}
		return nil
	},
}

var lawUpdateCmd = &cobra.Command{
	Use:   "update <session-id> <law-id>",
	Short: "Update a law's off-chain metadata",
	Long: `Update a law's off-chain metadata (author, party, category, tags,
document refs). Ledger-owned fields like title and tally cannot be
changed here; they always come from the contract.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseLawKey(args)
		if err != nil {
			return err
		}
		req, err := lawRequestFromFlags(cmd, "")
		if err != nil {
			return err
		}

		law, err := engineClient.UpdateLawMetadata(context.Background(), key, req)
		if err != nil {
			return fmt.Errorf("updating law: %w", err)
		}

		if jsonOutput {
			printJSON(law)
		} else {
			printLawTable(law)
		}
		return nil
	},
}

var lawSyncCmd = &cobra.Command{
	Use:   "sync <session-id> <law-id>",
	Short: "Re-read a law's ledger fields into the projection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseLawKey(args)
		if err != nil {
			return err
		}

		law, err := engineClient.SyncLaw(context.Background(), key)
		if err != nil {
			return fmt.Errorf("syncing law: %w", err)
		}

		if jsonOutput {
			printJSON(law)
		} else {
			printLawTable(law)
		}
		return nil
	},
}

func addLawMetadataFlags(cmd *cobra.Command) {
	cmd.Flags().String("description", "", "law description")
	cmd.Flags().String("author", "", "name of the proposing legislator")
	cmd.Flags().String("party", "", "party of the proposing legislator")
	cmd.Flags().String("category", "", "subject category")
	cmd.Flags().StringSlice("tag", nil, "tag (repeatable)")
	cmd.Flags().String("docs", "", "document references as a JSON value")
}

func init() {
	addLawMetadataFlags(lawAddCmd)
	addLawMetadataFlags(lawUpdateCmd)

	lawListCmd.Flags().Uint64("session", 0, "filter by session id")
	lawListCmd.Flags().StringSlice("status", nil, "filter by status (pending, in_debate, finalized)")
	lawListCmd.Flags().StringSlice("final-status", nil, "filter by final status (pending, approved, rejected)")
	lawListCmd.Flags().StringSlice("category", nil, "filter by category")
	lawListCmd.Flags().String("author", "", "filter by author")
	lawListCmd.Flags().Bool("active", false, "filter by active flag")
	lawListCmd.Flags().String("search", "", "full-text search over title and description")
	lawListCmd.Flags().String("sort", "", "sort order")
	lawListCmd.Flags().Int("limit", 50, "maximum laws to return")
	lawListCmd.Flags().Int("offset", 0, "offset into the result set")

	lawCmd.AddCommand(lawAddCmd)
	lawCmd.AddCommand(lawListCmd)
	lawCmd.AddCommand(lawShowCmd)
	lawCmd.AddCommand(lawUpdateCmd)
	lawCmd.AddCommand(lawSyncCmd)
}
