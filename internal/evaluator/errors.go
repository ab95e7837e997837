package evaluator

import (
	"errors"
	"fmt"

	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/operator"
)

// NodeTransformError records one node's failed evaluation. It is caught at
// the evaluator boundary and becomes the node's error flag; it never aborts
// a pass.
type NodeTransformError struct {
	NodeID graph.NodeID
	Kind   operator.Kind
	Cause  error
}

func (e *NodeTransformError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Kind, e.Cause)
}

func (e *NodeTransformError) Unwrap() error {
	return e.Cause
}

// IsNodeTransformError reports whether err is or wraps a *NodeTransformError.
func IsNodeTransformError(err error) bool {
	var te *NodeTransformError
	return errors.As(err, &te)
}

// PanicError is the cause recorded when a transform panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("transform panicked: %v", e.Value)
}
