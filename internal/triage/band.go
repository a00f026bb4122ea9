package triage

import (
	"fmt"

	"tendertriage/pkg/domain"
)

// Band is an open interval of normalized scores.
type Band struct {
	Upper float64 `json:"upper"`
	Lower float64 `json:"lower"`
}

// Contains reports whether score lies strictly between Lower and Upper.
func (b Band) Contains(score float64) bool {
	return score > b.Lower && score < b.Upper
}

func (b Band) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", b.Lower, b.Upper)
}

// Flag returns the positions of samples whose normalized score falls inside the band.
func (b Band) Flag(scores []float64) []int {
	var hits []int
	for i, s := range scores {
		if b.Contains(s) {
			hits = append(hits, i)
		}
	}
	return hits
}

// Ledger is the record store as seen by the band classifier.
type Ledger interface {
	// Samples returns the id and amount of every record, in display order.
	Samples() []domain.Sample
	// StampUnlocked writes status to each id whose current status is not
	// locked and returns the ids it actually wrote.
	StampUnlocked(ids []string, status domain.Status) []string
}

// Classify stamps status onto the flagged ids that are not currently locked.
// It returns the stamped ids and the number skipped because of a lock.
func Classify(ledger Ledger, flagged []string, status domain.Status) (stamped []string, locked int) {
	if len(flagged) == 0 {
		return nil, 0
	}
	stamped = ledger.StampUnlocked(flagged, status)
	return stamped, len(flagged) - len(stamped)
}
