package entities

type Tally struct {
	InVotes  int
	OutVotes int
}

func (t Tally) Total() int {
	return t.InVotes + t.OutVotes
}

type TripleState string

const (
	TripleStateUnvoted                     TripleState = "unvoted"
	TripleStateVoting                      TripleState = "voting"
	TripleStateResolvedPendingFinalization TripleState = "resolved_pending_finalization"
	TripleStateFinalized                   TripleState = "finalized"
)

// TallyKey names one (item, criterion) pair inside a job.
type TallyKey struct {
	ItemID      int64
	CriterionID int64
}

// ItemTally is one row of the consensus feed.
type ItemTally struct {
	ItemID      int64
	CriterionID int64
	Tally
}

func (t ItemTally) Key() TallyKey {
	return TallyKey{ItemID: t.ItemID, CriterionID: t.CriterionID}
}

// State derives the conceptual lifecycle state of a (job, item, criterion)
// triple. It is never stored.
func (t Tally) State(quota int, finalized bool) TripleState {
	switch {
	case finalized:
		return TripleStateFinalized
	case t.Total() == 0:
		return TripleStateUnvoted
	case t.Total() < quota:
		return TripleStateVoting
	default:
		return TripleStateResolvedPendingFinalization
	}
}
