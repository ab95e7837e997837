package engine

import (
	"github.com/roach88/textflow/internal/evaluator"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/journal"
	"github.com/roach88/textflow/internal/scheduler"
	"github.com/roach88/textflow/internal/value"
)

// PassSummary describes one completed pass.
type PassSummary struct {
	Seq   int64
	Cause Cause

	Order     []graph.NodeID // Scheduled nodes, in evaluation order
	Evaluated []graph.NodeID
	Failed    []graph.NodeID
	Skipped   []graph.NodeID
	Blocked   []graph.NodeID // On or downstream of a cycle

	Errors []*evaluator.NodeTransformError
	Cycle  *scheduler.CycleError

	// Changed is set when the pass moved any output, error flag, incoming
	// value or memo.
	Changed bool
}

// journalRecords converts a pass into journal rows: scheduled nodes first in
// evaluation order, then every unscheduled node as blocked.
func journalRecords(s PassSummary, states []graph.NodeState, edgeCount int, policy scheduler.CyclePolicy) (journal.PassRecord, []journal.EvaluationRecord) {
	pass := journal.PassRecord{
		Seq:       s.Seq,
		Cause:     string(s.Cause),
		Policy:    policy.String(),
		Changed:   s.Changed,
		NodeCount: len(states),
		EdgeCount: edgeCount,
		Cycle:     []string{},
	}
	if s.Cycle != nil {
		for _, id := range s.Cycle.Nodes {
			pass.Cycle = append(pass.Cycle, string(id))
		}
	}

	statusOf := make(map[graph.NodeID]journal.Status, len(states))
	for _, id := range s.Skipped {
		statusOf[id] = journal.StatusSkipped
	}
	for _, id := range s.Evaluated {
		statusOf[id] = journal.StatusEvaluated
	}
	for _, id := range s.Failed {
		statusOf[id] = journal.StatusFailed
	}

	byID := make(map[graph.NodeID]graph.NodeState, len(states))
	for _, st := range states {
		byID[st.ID] = st
	}

	evals := make([]journal.EvaluationRecord, 0, len(states))
	record := func(st graph.NodeState, status journal.Status) {
		rec := journal.EvaluationRecord{
			Seq:         s.Seq,
			Ordinal:     len(evals),
			NodeID:      string(st.ID),
			Kind:        string(st.Kind),
			Status:      status,
			ConfigHash:  fingerprint(value.DomainConfig, st.Config),
			OutputsHash: fingerprint(value.DomainOutputs, st.Outputs),
		}
		if st.Memo.Evaluated {
			rec.InputsHash = fingerprint(value.DomainInputs, value.Array(st.Memo.Inputs))
		}
		if status == journal.StatusFailed {
			rec.Error = st.ErrMessage
		}
		evals = append(evals, rec)
	}

	scheduled := make(map[graph.NodeID]bool, len(s.Order))
	for _, id := range s.Order {
		scheduled[id] = true
		st, ok := byID[id]
		if !ok {
			continue
		}
		record(st, statusOf[id])
	}
	for _, st := range states {
		if !scheduled[st.ID] {
			record(st, journal.StatusBlocked)
		}
	}
	return pass, evals
}

func fingerprint(domain string, v value.Value) string {
	fp, err := value.Fingerprint(domain, v)
	if err != nil {
		return ""
	}
	return fp
}
