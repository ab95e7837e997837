package journal

import (
	"context"
	"fmt"
)

// WritePass records a pass and its per-node evaluations in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency: rewriting a seq that already
// exists leaves the original rows in place.
func (j *Journal) WritePass(ctx context.Context, pass PassRecord, evals []EvaluationRecord) error {
	cycle, err := marshalIDs(pass.Cycle)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write pass: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passes
		(seq, cause, policy, changed, node_count, edge_count, cycle, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		pass.Seq,
		pass.Cause,
		pass.Policy,
		boolToInt(pass.Changed),
		pass.NodeCount,
		pass.EdgeCount,
		cycle,
		EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO evaluations
		(seq, ordinal, node_id, kind, status, inputs_hash, config_hash, outputs_hash, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write pass: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range evals {
		if ev.Seq != pass.Seq {
			return fmt.Errorf("write pass: evaluation for node %s has seq %d, pass is %d", ev.NodeID, ev.Seq, pass.Seq)
		}
		_, err := stmt.ExecContext(ctx,
			ev.Seq,
			ev.Ordinal,
			ev.NodeID,
			ev.Kind,
			string(ev.Status),
			ev.InputsHash,
			ev.ConfigHash,
			ev.OutputsHash,
			ev.Error,
		)
		if err != nil {
			return fmt.Errorf("write evaluation %d/%d: %w", ev.Seq, ev.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write pass: commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
