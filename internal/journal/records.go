package journal

import (
	"fmt"

	"github.com/roach88/textflow/internal/value"
)

// EngineVersion is stamped on every pass row.
const EngineVersion = "0.1.0"

// Status is what happened to one node in a pass.
type Status string

const (
	StatusEvaluated Status = "evaluated"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusBlocked   Status = "blocked"
)

// PassRecord is one row of the passes table.
type PassRecord struct {
	Seq       int64    `json:"seq"`
	Cause     string   `json:"cause"`
	Policy    string   `json:"policy"`
	Changed   bool     `json:"changed"`
	NodeCount int      `json:"node_count"`
	EdgeCount int      `json:"edge_count"`
	Cycle     []string `json:"cycle"`
}

// EvaluationRecord is one row of the evaluations table.
type EvaluationRecord struct {
	Seq         int64  `json:"seq"`
	Ordinal     int    `json:"ordinal"`
	NodeID      string `json:"node_id"`
	Kind        string `json:"kind"`
	Status      Status `json:"status"`
	InputsHash  string `json:"inputs_hash,omitempty"`
	ConfigHash  string `json:"config_hash,omitempty"`
	OutputsHash string `json:"outputs_hash,omitempty"`
	Error       string `json:"error,omitempty"`
}

// marshalIDs stores an id list as a canonical JSON array.
func marshalIDs(ids []string) (string, error) {
	arr := make(value.Array, len(ids))
	for i, id := range ids {
		arr[i] = value.String(id)
	}
	data, err := value.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

func unmarshalIDs(data string) ([]string, error) {
	v, err := value.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, fmt.Errorf("unmarshal ids: expected array, got %T", v)
	}
	ids := make([]string, len(arr))
	for i, elem := range arr {
		s, ok := elem.(value.String)
		if !ok {
			return nil, fmt.Errorf("unmarshal ids: element %d is %T", i, elem)
		}
		ids[i] = string(s)
	}
	return ids, nil
}
