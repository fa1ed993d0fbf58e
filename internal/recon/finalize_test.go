package recon

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/model"
)

// seedSession puts a session and its laws on the fake ledger and mirrors the
// laws into the projection, the state a synced deployment would be in.
func seedSession(gw *fakeGateway, st *memStore, sessionID uint64, tallies ...model.Tally) {
	gw.sessions[sessionID] = &ledger.SessionState{
		ID: sessionID, Date: "2026-05-01", Active: true, LawCount: uint64(len(tallies)),
	}
	for i, tally := range tallies {
		key := model.LawKey{SessionID: sessionID, LedgerLawID: uint64(i)}
		gw.laws[key] = &ledger.LawState{SessionID: sessionID, LawID: uint64(i), Title: "Law", Active: true}
		gw.tallies[key] = tally
		st.laws[key] = &model.Law{
			SessionID: sessionID, LedgerLawID: uint64(i), Title: "Law",
			Status: model.StatusInDebate, FinalStatus: model.FinalPending,
			Active: true, Tally: tally,
		}
	}
}

func TestFinalizeSession_SettlesEveryLaw(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	// Approved, tie rejects, nobody voted stays pending, rejected.
	seedSession(gw, st, 1,
		model.Tally{Favor: 6, Contra: 2},
		model.Tally{Favor: 5, Contra: 5},
		model.Tally{},
		model.Tally{Contra: 1, Abstentions: 9},
	)

	report, err := testService(gw, st).FinalizeSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	if len(gw.finalized) != 1 || gw.finalized[0] != 1 {
		t.Fatalf("ledger finalize calls = %v", gw.finalized)
	}
	if report.TxHash != "0xfinal" || report.Failed != 0 || report.SyncError != "" {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.ReportID == "" || !strings.HasPrefix(report.ReportID, "pl-") {
		t.Errorf("report id = %q", report.ReportID)
	}

	want := []model.FinalStatus{
		model.FinalApproved,
		model.FinalRejected,
		model.FinalPending,
		model.FinalRejected,
	}
	if len(report.Outcomes) != len(want) {
		t.Fatalf("got %d outcomes, want %d", len(report.Outcomes), len(want))
	}
	for i, w := range want {
		if report.Outcomes[i].FinalStatus != w {
			t.Errorf("law %d final status = %s, want %s", i, report.Outcomes[i].FinalStatus, w)
		}
	}

	for i := range want {
		stored := st.laws[model.LawKey{SessionID: 1, LedgerLawID: uint64(i)}]
		if stored.Status != model.StatusFinalized || stored.Active {
			t.Errorf("law %d not settled: %+v", i, stored)
		}
	}
	session := st.sessions[1]
	if session == nil || session.Active || session.FinalizedAt == nil {
		t.Errorf("session row not closed: %+v", session)
	}
}

func TestFinalizeSession_LedgerFailureAbortsEverything(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	seedSession(gw, st, 2, model.Tally{Favor: 1})
	gw.finalizeErr = ledger.ErrSessionNotActive

	_, err := testService(gw, st).FinalizeSession(context.Background(), 2)
	if !errors.Is(err, ledger.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	law := st.laws[model.LawKey{SessionID: 2, LedgerLawID: 0}]
	if law.Status == model.StatusFinalized || !law.Active {
		t.Errorf("no settlement expected after ledger failure: %+v", law)
	}
}

func TestFinalizeSession_LawFailureIsIsolated(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	seedSession(gw, st, 3, model.Tally{Favor: 2}, model.Tally{Contra: 3})

	// Law 0 never reached the projection; law 1 must still settle.
	delete(st.laws, model.LawKey{SessionID: 3, LedgerLawID: 0})

	report, err := testService(gw, st).FinalizeSession(context.Background(), 3)
	if err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	if report.Outcomes[0].Error == "" {
		t.Error("missing law should carry an error")
	}
	if report.Outcomes[1].FinalStatus != model.FinalRejected {
		t.Errorf("law 1 final status = %s, want rejected", report.Outcomes[1].FinalStatus)
	}
}

func TestFinalizeSession_SettlesFromProjectionWithoutLedgerReads(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	seedSession(gw, st, 4, model.Tally{Favor: 9, Contra: 1})

	// Any per-law ledger read would fail; settlement must not issue one.
	gw.lawErr = ledger.ErrNetworkTransient
	gw.tallyErr = ledger.ErrNetworkTransient

	report, err := testService(gw, st).FinalizeSession(context.Background(), 4)
	if err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	if report.Failed != 0 {
		t.Fatalf("failed = %d: %+v", report.Failed, report.Outcomes)
	}
	if report.Outcomes[0].FinalStatus != model.FinalApproved {
		t.Errorf("final status = %s, want approved", report.Outcomes[0].FinalStatus)
	}
	key := model.LawKey{SessionID: 4, LedgerLawID: 0}
	if st.laws[key].FinalStatus != model.FinalApproved {
		t.Errorf("projection not settled: %+v", st.laws[key])
	}
}

func TestFinalizeSession_ReportsSyncErrorWhenSessionReadFails(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()

	// The ledger accepts the finalize but the session read-back fails.
	report, err := testService(gw, st).FinalizeSession(context.Background(), 6)
	if err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	if report.SyncError == "" {
		t.Error("report should carry the sync error")
	}
	if report.Failed != 0 || len(report.Outcomes) != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.TxHash != "0xfinal" {
		t.Errorf("tx hash = %q", report.TxHash)
	}
}

func TestFinalizeSession_RerunKeepsEarlierOutcomes(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	seedSession(gw, st, 5, model.Tally{Favor: 1, Contra: 4})

	svc := testService(gw, st)
	first, err := svc.FinalizeSession(context.Background(), 5)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Outcomes[0].FinalStatus != model.FinalRejected {
		t.Fatalf("first outcome = %s", first.Outcomes[0].FinalStatus)
	}

	// Flip the projection tally; a rerun must not rewrite the settled status.
	st.laws[model.LawKey{SessionID: 5, LedgerLawID: 0}].Tally = model.Tally{Favor: 10}
	second, err := svc.FinalizeSession(context.Background(), 5)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Outcomes[0].FinalStatus != model.FinalRejected {
		t.Errorf("settled status rewritten to %s", second.Outcomes[0].FinalStatus)
	}
}
