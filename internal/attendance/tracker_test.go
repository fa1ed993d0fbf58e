package attendance

import (
	"testing"
	"time"
)

func TestRecordVote_BasicTracking(t *testing.T) {
	tr := New()

	tr.RecordVote(1, "0xaaa", "present")

	roster := tr.Roster(1, 0)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}

	e := roster[0]
	if e.Address != "0xaaa" {
		t.Errorf("expected address 0xaaa, got %s", e.Address)
	}
	if e.LastChoice != "present" {
		t.Errorf("expected last_choice present, got %s", e.LastChoice)
	}
	if e.VoteCount != 1 {
		t.Errorf("expected vote_count 1, got %d", e.VoteCount)
	}
}

func TestRecordVote_UpdatesExistingLegislator(t *testing.T) {
	tr := New()

	tr.RecordVote(1, "0xbbb", "present")
	tr.RecordVote(1, "0xbbb", "favor")
	tr.RecordVote(1, "0xbbb", "against")

	roster := tr.Roster(1, 0)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}

	e := roster[0]
	if e.VoteCount != 3 {
		t.Errorf("expected 3 votes, got %d", e.VoteCount)
	}
	if e.LastChoice != "against" {
		t.Errorf("expected last_choice against, got %s", e.LastChoice)
	}
}

func TestRecordVote_IgnoresEmptyAddress(t *testing.T) {
	tr := New()

	tr.RecordVote(1, "", "favor")

	if roster := tr.Roster(1, 0); len(roster) != 0 {
		t.Fatalf("expected 0 entries for empty address, got %d", len(roster))
	}
}

func TestRoster_SessionsAreIsolated(t *testing.T) {
	tr := New()

	tr.RecordVote(1, "0xaaa", "favor")
	tr.RecordVote(2, "0xbbb", "against")

	if roster := tr.Roster(1, 0); len(roster) != 1 || roster[0].Address != "0xaaa" {
		t.Fatalf("session 1 roster = %+v", roster)
	}
	if roster := tr.Roster(2, 0); len(roster) != 1 || roster[0].Address != "0xbbb" {
		t.Fatalf("session 2 roster = %+v", roster)
	}
}

func TestRoster_StaleThreshold(t *testing.T) {
	tr := New()

	tr.RecordVote(1, "0xold", "present")
	// Backdate the legislator past the threshold.
	tr.mu.Lock()
	tr.sessions[1]["0xold"].lastSeen = time.Now().Add(-time.Hour)
	tr.mu.Unlock()

	tr.RecordVote(1, "0xfresh", "favor")

	roster := tr.Roster(1, 10*time.Minute)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry within threshold, got %d", len(roster))
	}
	if roster[0].Address != "0xfresh" {
		t.Errorf("expected 0xfresh, got %s", roster[0].Address)
	}

	// Zero threshold includes everyone.
	if all := tr.Roster(1, 0); len(all) != 2 {
		t.Fatalf("expected 2 entries with zero threshold, got %d", len(all))
	}
}

func TestRoster_SortedByMostRecent(t *testing.T) {
	tr := New()

	tr.RecordVote(1, "0xfirst", "favor")
	time.Sleep(5 * time.Millisecond)
	tr.RecordVote(1, "0xsecond", "favor")

	roster := tr.Roster(1, 0)
	if len(roster) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(roster))
	}
	if roster[0].Address != "0xsecond" {
		t.Errorf("expected most recent first, got %s", roster[0].Address)
	}
}

func TestClearSession(t *testing.T) {
	tr := New()

	tr.RecordVote(1, "0xaaa", "favor")
	tr.RecordVote(2, "0xbbb", "favor")
	tr.ClearSession(1)

	if roster := tr.Roster(1, 0); len(roster) != 0 {
		t.Fatalf("expected empty roster after clear, got %d entries", len(roster))
	}
	if roster := tr.Roster(2, 0); len(roster) != 1 {
		t.Fatalf("other sessions must survive a clear, got %d entries", len(roster))
	}
}
