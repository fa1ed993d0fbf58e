package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/parlatech/plenum/internal/attendance"
	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/recon"
	"github.com/parlatech/plenum/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSessionTable(s *model.Session) {
	fmt.Printf("ID:          %d\n", s.ID)
	fmt.Printf("Date:        %s\n", s.Date)
	if s.Description != "" {
		fmt.Printf("Description: %s\n", s.Description)
	}
	fmt.Printf("Active:      %t\n", s.Active)
	fmt.Printf("Laws:        %d\n", s.LawCount)
	if !s.CreatedAt.IsZero() {
		fmt.Printf("Created At:  %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if s.FinalizedAt != nil {
		fmt.Printf("Finalized:   %s\n", s.FinalizedAt.Format("2006-01-02 15:04:05"))
	}
}

func printSessionListTable(sessions []*model.Session, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tACTIVE\tLAWS\tDESCRIPTION")
	for _, s := range sessions {
		desc := s.Description
		if len(desc) > 50 {
			desc = desc[:47] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%d\t%s\n", s.ID, s.Date, s.Active, s.LawCount, desc)
	}
	w.Flush()
	fmt.Printf("\n%d sessions (%d total)\n", len(sessions), total)
}

func printLawTable(l *model.Law) {
	fmt.Printf("Session:      %d\n", l.SessionID)
	fmt.Printf("Law:          %d\n", l.LedgerLawID)
	fmt.Printf("Title:        %s\n", l.Title)
	if l.Description != "" {
		fmt.Printf("Description:  %s\n", l.Description)
	}
	fmt.Printf("Status:       %s\n", l.Status)
	fmt.Printf("Final Status: %s\n", ui.RenderOutcome(l.FinalStatus.String()))
	fmt.Printf("Tally:        %s\n", formatTally(l.Tally))
	if l.Author != "" {
		fmt.Printf("Author:       %s\n", l.Author)
	}
	if l.Party != "" {
		fmt.Printf("Party:        %s\n", l.Party)
	}
	if l.Category != "" {
		fmt.Printf("Category:     %s\n", l.Category)
	}
	if len(l.Tags) > 0 {
		fmt.Printf("Tags:         %s\n", strings.Join(l.Tags, ", "))
	}
	if !l.CreatedAt.IsZero() {
		fmt.Printf("Created At:   %s\n", l.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printLawListTable(laws []*model.Law, total, currentPage, totalPages int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tLAW\tSTATUS\tFINAL\tTALLY\tTITLE")
	for _, l := range laws {
		title := l.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
			l.SessionID,
			l.LedgerLawID,
			l.Status,
			ui.RenderOutcome(l.FinalStatus.String()),
			formatTally(l.Tally),
			title,
		)
	}
	w.Flush()
	fmt.Printf("\n%d laws (%d total, page %d of %d)\n", len(laws), total, currentPage, totalPages)
}

func formatTally(t model.Tally) string {
	return fmt.Sprintf("%d/%d/%d", t.Favor, t.Contra, t.Abstentions)
}

func printVoteListTable(votes []*model.Vote, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VOTER\tCHOICE\tTX\tBLOCK")
	for _, v := range votes {
		tx := v.TxRef
		if len(tx) > 14 {
			tx = tx[:14] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", v.ActorAddress, v.ChoiceLabel, tx, v.BlockNumber)
	}
	w.Flush()
	fmt.Printf("\n%d votes (%d total)\n", len(votes), total)
}

func printFinalizeReport(r *recon.FinalizeReport) {
	fmt.Printf("Report:  %s\n", r.ReportID)
	fmt.Printf("Session: %d\n", r.SessionID)
	fmt.Printf("Tx:      %s\n", r.TxHash)
	if r.BlockNumber > 0 {
		fmt.Printf("Block:   %d\n", r.BlockNumber)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LAW\tOUTCOME\tTALLY\tTITLE")
	for _, o := range r.Outcomes {
		if o.Error != "" {
			fmt.Fprintf(w, "%d\t%s\t\t%s\n", o.Key.LedgerLawID, ui.RenderMuted("error: "+o.Error), o.Title)
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			o.Key.LedgerLawID,
			ui.RenderOutcome(o.FinalStatus.String()),
			formatTally(o.Tally),
			o.Title,
		)
	}
	w.Flush()

	if r.SyncError != "" {
		fmt.Printf("\nsession closed on the ledger but the projection sync failed: %s\n", r.SyncError)
		fmt.Printf("run 'plenum session sync %d' to repair\n", r.SessionID)
		return
	}
	if r.Failed > 0 {
		fmt.Printf("\n%d laws settled, %d failed (run 'plenum session sync %d' to repair)\n",
			len(r.Outcomes)-r.Failed, r.Failed, r.SessionID)
	} else {
		fmt.Printf("\n%d laws settled\n", len(r.Outcomes))
	}
}

func printAttendanceTable(entries []attendance.Entry, total int) {
	if len(entries) == 0 {
		fmt.Println("no attendance recorded")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tLAST CHOICE\tVOTES\tIDLE\tIN SESSION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.0fs\t%.0fs\n",
			e.Address, e.LastChoice, e.VoteCount, e.IdleSecs, e.SessionDurationSecs)
	}
	w.Flush()
	fmt.Printf("\n%d legislators present\n", total)
}
