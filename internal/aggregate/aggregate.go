// Package aggregate collects probe outcomes and profile records of one
// search session in candidate order.
package aggregate

import (
	"github.com/nao1215/phoneprobe/internal/model"
)

// Aggregator accumulates the results of one session. It is not safe for
// concurrent use; a session probes sequentially.
type Aggregator struct {
	outcomes []model.ProbeOutcome
	records  []model.ProfileRecord

	// index maps a candidate value to its position in outcomes.
	index map[string]int
	// recordIndex maps a candidate value to its position in records.
	recordIndex map[string]int
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		outcomes:    make([]model.ProbeOutcome, 0),
		records:     make([]model.ProfileRecord, 0),
		index:       make(map[string]int),
		recordIndex: make(map[string]int),
	}
}

// Add records an outcome and, for Found outcomes, its profile record.
//
// A later attempt for a candidate already seen replaces the earlier outcome
// in place, so each candidate appears once at the position of its first
// probe. A Found result is never replaced by a later non-Found attempt, and
// its record is kept even when extraction was incomplete.
func (a *Aggregator) Add(outcome model.ProbeOutcome, record *model.ProfileRecord) {
	key := outcome.Candidate.Value
	outcome.RawContent = ""

	if i, ok := a.index[key]; ok {
		if a.outcomes[i].IsFound() && !outcome.IsFound() {
			return
		}
		a.outcomes[i] = outcome
	} else {
		a.index[key] = len(a.outcomes)
		a.outcomes = append(a.outcomes, outcome)
	}

	if record == nil || !outcome.IsFound() {
		return
	}
	if i, ok := a.recordIndex[key]; ok {
		a.records[i] = *record
		return
	}
	a.recordIndex[key] = len(a.records)
	a.records = append(a.records, *record)
}

// Outcomes returns one outcome per candidate in probing order.
func (a *Aggregator) Outcomes() []model.ProbeOutcome {
	out := make([]model.ProbeOutcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out
}

// Records returns the profile records in probing order.
func (a *Aggregator) Records() []model.ProfileRecord {
	out := make([]model.ProfileRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Summary counts the current outcomes per classification.
func (a *Aggregator) Summary() model.Summary {
	var s model.Summary
	for _, o := range a.outcomes {
		s.Add(o.Classification)
	}
	return s
}

// Len returns the number of distinct candidates recorded.
func (a *Aggregator) Len() int {
	return len(a.outcomes)
}

// Apply copies the aggregated results into the session.
func (a *Aggregator) Apply(s *model.SearchSession) {
	s.Outcomes = a.Outcomes()
	s.Records = a.Records()
	s.Summary = a.Summary()
}
