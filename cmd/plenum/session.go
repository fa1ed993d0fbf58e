package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/parlatech/plenum/internal/client"
	"github.com/spf13/cobra"
)

func parseID(arg, what string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected a numeric id", what, arg)
	}
	return id, nil
}

var sessionCmd = &cobra.Command{
	Use:     "session",
	Short:   "Manage plenary sessions",
	GroupID: "sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <date>",
	Short: "Open a new plenary session on the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		session, err := engineClient.CreateSession(context.Background(), &client.CreateSessionRequest{
			Date:        args[0],
			Description: description,
		})
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}

		if jsonOutput {
			printJSON(session)
		} else {
			fmt.Printf("session %d created for %s\n", session.ID, session.Date)
		}
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		resp, err := engineClient.ListSessions(context.Background(), limit, offset)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
		} else {
			printSessionListTable(resp.Sessions, resp.Total)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "session id")
		if err != nil {
			return err
		}

		session, err := engineClient.GetSession(context.Background(), id)
		if err != nil {
			return fmt.Errorf("fetching session: %w", err)
		}

		if jsonOutput {
			printJSON(session)
		} else {
			printSessionTable(session)
		}
		return nil
	},
}

var sessionActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the currently active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := engineClient.ActiveSession(context.Background())
		if err != nil {
			return fmt.Errorf("fetching active session: %w", err)
		}

		if jsonOutput {
			printJSON(session)
		} else {
			printSessionTable(session)
		}
		return nil
	},
}

var sessionFinalizeCmd = &cobra.Command{
	Use:   "finalize <id>",
	Short: "Close a session on the ledger and settle its laws",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "session id")
		if err != nil {
			return err
		}

		report, err := engineClient.FinalizeSession(context.Background(), id)
		if err != nil {
			return fmt.Errorf("finalizing session: %w", err)
		}

		if jsonOutput {
			printJSON(report)
		} else {
			printFinalizeReport(report)
		}
		return nil
	},
}

var sessionSyncCmd = &cobra.Command{
	Use:   "sync <id>",
	Short: "Re-read a session and its laws from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "session id")
		if err != nil {
			return err
		}

		session, err := engineClient.SyncSession(context.Background(), id)
		if err != nil {
			return fmt.Errorf("syncing session: %w", err)
		}

		if jsonOutput {
			printJSON(session)
		} else {
			fmt.Printf("session %d synced (%d laws)\n", session.ID, session.LawCount)
		}
		return nil
	},
}

var sessionRebuildCmd = &cobra.Command{
	Use:   "rebuild <id>",
	Short: "Rebuild a session's projection from the ledger, pruning stale laws",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "session id")
		if err != nil {
			return err
		}

		session, err := engineClient.RebuildSession(context.Background(), id)
		if err != nil {
			return fmt.Errorf("rebuilding session: %w", err)
		}

		if jsonOutput {
			printJSON(session)
		} else {
			fmt.Printf("session %d rebuilt (%d laws)\n", session.ID, session.LawCount)
		}
		return nil
	},
}

var sessionAttendanceCmd = &cobra.Command{
	Use:   "attendance <id>",
	Short: "Show the attendance roster for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "session id")
		if err != nil {
			return err
		}
		staleSecs, _ := cmd.Flags().GetInt("stale-threshold")

		resp, err := engineClient.Attendance(context.Background(), id, staleSecs)
		if err != nil {
			return fmt.Errorf("fetching attendance: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
		} else {
			printAttendanceTable(resp.Attendance, resp.Total)
		}
		return nil
	},
}

func init() {
	sessionCreateCmd.Flags().String("description", "", "session description")

	sessionListCmd.Flags().Int("limit", 50, "maximum sessions to return")
	sessionListCmd.Flags().Int("offset", 0, "offset into the result set")

	sessionAttendanceCmd.Flags().Int("stale-threshold", 0, "hide legislators idle longer than this many seconds (0 = show all)")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionActiveCmd)
	sessionCmd.AddCommand(sessionFinalizeCmd)
	sessionCmd.AddCommand(sessionSyncCmd)
	sessionCmd.AddCommand(sessionRebuildCmd)
	sessionCmd.AddCommand(sessionAttendanceCmd)
}
