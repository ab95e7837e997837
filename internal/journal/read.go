package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// LastSeq returns the highest recorded pass seq, or 0 for an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM passes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadPasses returns every pass ordered by seq.
// Returns an empty slice (not nil) if the journal is empty.
func (j *Journal) ReadPasses(ctx context.Context) ([]PassRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, cause, policy, changed, node_count, edge_count, cycle
		FROM passes
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []PassRecord{}
	for rows.Next() {
		var (
			p       PassRecord
			changed int
			cycle   string
		)
		if err := rows.Scan(&p.Seq, &p.Cause, &p.Policy, &changed, &p.NodeCount, &p.EdgeCount, &cycle); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		p.Changed = changed == 1
		if p.Cycle, err = unmarshalIDs(cycle); err != nil {
			return nil, fmt.Errorf("pass %d: %w", p.Seq, err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

// ReadEvaluations returns the evaluations of one pass in pass order.
func (j *Journal) ReadEvaluations(ctx context.Context, seq int64) ([]EvaluationRecord, error) {
	return j.queryEvaluations(ctx, `
		SELECT seq, ordinal, node_id, kind, status, inputs_hash, config_hash, outputs_hash, error
		FROM evaluations
		WHERE seq = ?
		ORDER BY seq ASC, ordinal ASC
	`, seq)
}

// NodeHistory returns every evaluation of one node across passes.
func (j *Journal) NodeHistory(ctx context.Context, nodeID string) ([]EvaluationRecord, error) {
	return j.queryEvaluations(ctx, `
		SELECT seq, ordinal, node_id, kind, status, inputs_hash, config_hash, outputs_hash, error
		FROM evaluations
		WHERE node_id = ?
		ORDER BY seq ASC, ordinal ASC
	`, nodeID)
}

func (j *Journal) queryEvaluations(ctx context.Context, query string, arg any) ([]EvaluationRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	evals := []EvaluationRecord{}
	for rows.Next() {
		var (
			ev     EvaluationRecord
			status string
		)
		if err := rows.Scan(&ev.Seq, &ev.Ordinal, &ev.NodeID, &ev.Kind, &status,
			&ev.InputsHash, &ev.ConfigHash, &ev.OutputsHash, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		ev.Status = Status(status)
		evals = append(evals, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return evals, nil
}
