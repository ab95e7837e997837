package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes rejected graph mutations.
type ErrorCode string

const (
	// ErrCodeInvalidEdge indicates an edge endpoint or port does not exist.
	ErrCodeInvalidEdge ErrorCode = "INVALID_EDGE"

	// ErrCodePortOccupied indicates the target input slot already has a producer.
	ErrCodePortOccupied ErrorCode = "PORT_OCCUPIED"

	// ErrCodeNodeNotFound indicates the referenced node is not in the graph.
	ErrCodeNodeNotFound ErrorCode = "NODE_NOT_FOUND"

	// ErrCodeEdgeNotFound indicates the edge to remove is not in the graph.
	ErrCodeEdgeNotFound ErrorCode = "EDGE_NOT_FOUND"

	// ErrCodeUnknownOperator indicates AddNode named an unregistered kind.
	ErrCodeUnknownOperator ErrorCode = "UNKNOWN_OPERATOR"
)

// Error is returned for every rejected mutation. The graph is unchanged
// when an Error is returned.
type Error struct {
	Code    ErrorCode
	Message string

	// NodeID and Port locate the offending endpoint, when there is one.
	NodeID NodeID
	Port   string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.NodeID != "" && e.Port != "" {
		return fmt.Sprintf("%s: %s (node=%s, port=%s)", e.Code, e.Message, e.NodeID, e.Port)
	}
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the ErrorCode carried by err, or "" if err is not a graph
// error. Uses errors.As to handle wrapped errors.
func Code(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// IsInvalidEdge reports whether err rejected an edge with a bad endpoint.
func IsInvalidEdge(err error) bool { return Code(err) == ErrCodeInvalidEdge }

// IsPortOccupied reports whether err rejected an edge into a taken slot.
func IsPortOccupied(err error) bool { return Code(err) == ErrCodePortOccupied }

// IsNotFound reports whether err names a missing node or edge.
func IsNotFound(err error) bool {
	c := Code(err)
	return c == ErrCodeNodeNotFound || c == ErrCodeEdgeNotFound
}

func nodeNotFound(id NodeID) *Error {
	return &Error{Code: ErrCodeNodeNotFound, Message: "node does not exist", NodeID: id}
}

func invalidEdge(id NodeID, port, msg string) *Error {
	return &Error{Code: ErrCodeInvalidEdge, Message: msg, NodeID: id, Port: port}
}
