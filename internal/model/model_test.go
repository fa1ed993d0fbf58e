package model

import (
	"testing"
	"time"
)

func TestChoiceRoundTrip(t *testing.T) {
	for _, c := range []Choice{ChoiceAbsent, ChoicePresent, ChoiceFavor, ChoiceAgainst, ChoiceAbstain} {
		if !c.IsValid() {
			t.Errorf("Choice(%d).IsValid() = false", c)
		}
		parsed, err := ParseChoice(c.String())
		if err != nil {
			t.Fatalf("ParseChoice(%q): %v", c.String(), err)
		}
		if parsed != c {
			t.Errorf("ParseChoice(%q) = %d, want %d", c.String(), parsed, c)
		}
	}
}

func TestChoiceInvalid(t *testing.T) {
	if Choice(5).IsValid() {
		t.Error("Choice(5) should be invalid")
	}
	if Choice(255).String() != "unknown(255)" {
		t.Errorf("Choice(255).String() = %q", Choice(255).String())
	}
	if _, err := ParseChoice("maybe"); err == nil {
		t.Error("ParseChoice(\"maybe\") should fail")
	}
}

func TestChoiceBucket(t *testing.T) {
	for _, tc := range []struct {
		choice Choice
		bucket TallyBucket
		counts bool
	}{
		{ChoiceFavor, BucketFavor, true},
		{ChoiceAgainst, BucketContra, true},
		{ChoiceAbstain, BucketAbstentions, true},
		{ChoiceAbsent, BucketAbsent, true},
		{ChoicePresent, "", false},
	} {
		bucket, ok := tc.choice.Bucket()
		if ok != tc.counts || bucket != tc.bucket {
			t.Errorf("Choice(%s).Bucket() = (%q, %v), want (%q, %v)",
				tc.choice, bucket, ok, tc.bucket, tc.counts)
		}
	}
}

func TestTallyApply(t *testing.T) {
	var tally Tally
	tally.Apply(ChoiceFavor)
	tally.Apply(ChoiceFavor)
	tally.Apply(ChoiceAgainst)
	tally.Apply(ChoiceAbstain)
	tally.Apply(ChoiceAbsent)
	tally.Apply(ChoicePresent) // no counter

	want := Tally{Favor: 2, Contra: 1, Abstentions: 1, Absent: 1}
	if tally != want {
		t.Errorf("tally = %+v, want %+v", tally, want)
	}
	if tally.Total() != 4 {
		t.Errorf("Total() = %d, want 4", tally.Total())
	}
}

func TestValidateLaw(t *testing.T) {
	valid := func() *Law {
		return &Law{
			SessionID:   0,
			LedgerLawID: 0,
			Title:       "Budget amendment",
			Status:      StatusInDebate,
			FinalStatus: FinalPending,
			Active:      true,
		}
	}

	if err := ValidateLaw(valid()); err != nil {
		t.Fatalf("valid law rejected: %v", err)
	}

	for name, mutate := range map[string]func(*Law){
		"empty title":            func(l *Law) { l.Title = "   " },
		"bad status":             func(l *Law) { l.Status = "limbo" },
		"bad final status":       func(l *Law) { l.FinalStatus = "vetoed" },
		"early final status":     func(l *Law) { l.FinalStatus = FinalApproved },
		"active after finalized": func(l *Law) { l.Status = StatusFinalized; l.Active = true },
	} {
		l := valid()
		mutate(l)
		err := ValidateLaw(l)
		if err == nil {
			t.Errorf("%s: expected validation error", name)
			continue
		}
		var ve *ValidationError
		if !asValidation(err, &ve) {
			t.Errorf("%s: error is not *ValidationError: %v", name, err)
		}
	}

	// Finalized law with a recorded outcome is valid.
	l := valid()
	l.Status = StatusFinalized
	l.FinalStatus = FinalApproved
	l.Active = false
	if err := ValidateLaw(l); err != nil {
		t.Errorf("finalized law rejected: %v", err)
	}
}

func TestValidateSession(t *testing.T) {
	now := time.Now()
	if err := ValidateSession(&Session{ID: 1, Date: "2026-03-14", Active: true}); err != nil {
		t.Errorf("valid session rejected: %v", err)
	}
	if err := ValidateSession(&Session{ID: 1, Date: ""}); err == nil {
		t.Error("empty date should fail")
	}
	if err := ValidateSession(&Session{ID: 1, Date: "2026-03-14", Active: true, FinalizedAt: &now}); err == nil {
		t.Error("active finalized session should fail")
	}
}

func asValidation(err error, target **ValidationError) bool {
	ve, ok := err.(*ValidationError)
	if ok {
		*target = ve
	}
	return ok
}
