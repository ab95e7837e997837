package engine

import (
	"context"
	"errors"
)

// ErrReentrantPass is returned when an engine operation is attempted from
// inside an in-flight pass.
var ErrReentrantPass = errors.New("REENTRANT_PASS: engine operation attempted from inside a pass")

type passKey struct{}

// withinPass marks ctx as belonging to pass seq.
func withinPass(ctx context.Context, seq int64) context.Context {
	return context.WithValue(ctx, passKey{}, seq)
}

// InPass reports whether ctx was handed out by a running pass, and which.
func InPass(ctx context.Context) (int64, bool) {
	seq, ok := ctx.Value(passKey{}).(int64)
	return seq, ok
}
