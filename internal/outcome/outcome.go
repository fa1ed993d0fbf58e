// Package outcome holds the decision rule applied to a law's final tally.
package outcome

import "github.com/parlatech/plenum/internal/model"

// Decide maps a final tally to the law's terminal status. Absences and
// abstentions never count toward either side: a law passes only when strictly
// more favor votes than contra votes were cast. A tie rejects. A law nobody
// took a position on stays pending.
func Decide(t model.Tally) model.FinalStatus {
	if t.Total() == 0 {
		return model.FinalPending
	}
	if t.Favor > t.Contra {
		return model.FinalApproved
	}
	return model.FinalRejected
}
