package testutil

import (
	"errors"
	"strings"
	"sync"

	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

// Test-only operator kinds registered by NewTestRegistry.
const (
	// KindSplit cuts its input at config "sep" into outputs "head" and
	// "tail". Without a separator in the input it returns only "head".
	KindSplit operator.Kind = "split"

	// KindFlaky fails when its input contains "fail" and otherwise passes
	// the input through.
	KindFlaky operator.Kind = "flaky"

	// KindPanic panics on every call.
	KindPanic operator.Kind = "panic"
)

// ErrFlaky is returned by KindFlaky.
var ErrFlaky = errors.New("flaky: input asked to fail")

// Counter counts transform invocations per kind.
//
// Thread-safety: safe for concurrent use via internal mutex.
type Counter struct {
	mu     sync.Mutex
	counts map[operator.Kind]int
}

// Count returns how often transforms of kind ran.
func (c *Counter) Count(kind operator.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}

// Total returns the number of transform invocations across all kinds.
func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Reset zeroes all counts.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.counts)
}

func (c *Counter) wrap(kind operator.Kind, fn operator.TransformFunc) operator.TransformFunc {
	return func(inputs []value.Value, config value.Object) ([]value.Value, error) {
		c.mu.Lock()
		c.counts[kind]++
		c.mu.Unlock()
		return fn(inputs, config)
	}
}

// NewCountingRegistry returns a copy of base whose transforms count their
// invocations in the returned Counter.
func NewCountingRegistry(base *operator.Registry) (*operator.Registry, *Counter) {
	c := &Counter{counts: make(map[operator.Kind]int)}
	r := operator.NewRegistry()
	for _, def := range base.Definitions() {
		def.Transform = c.wrap(def.Kind, def.Transform)
		r.MustRegister(def)
	}
	return r, c
}

// NewTestRegistry returns the built-in operators plus the test kinds, all
// counting their invocations.
func NewTestRegistry() (*operator.Registry, *Counter) {
	base := operator.NewBuiltinRegistry()
	base.MustRegister(operator.Definition{
		Kind:    KindSplit,
		Name:    "Split",
		Inputs:  []operator.Port{{ID: "input", Name: "Input"}},
		Outputs: []operator.Port{{ID: "head", Name: "Head"}, {ID: "tail", Name: "Tail"}},
		Transform: func(inputs []value.Value, config value.Object) ([]value.Value, error) {
			sep, _ := config.String("sep")
			in := value.Text(inputs[0])
			head, tail, found := strings.Cut(in, sep)
			if sep == "" || !found {
				return []value.Value{value.String(in)}, nil
			}
			return []value.Value{value.String(head), value.String(tail)}, nil
		},
		Defaults: value.Object{"sep": value.String(",")},
	})
	base.MustRegister(operator.Definition{
		Kind:    KindFlaky,
		Name:    "Flaky",
		Inputs:  []operator.Port{{ID: "input", Name: "Input"}},
		Outputs: []operator.Port{{ID: "output", Name: "Output"}},
		Transform: func(inputs []value.Value, _ value.Object) ([]value.Value, error) {
			in := value.Text(inputs[0])
			if strings.Contains(in, "fail") {
				return nil, ErrFlaky
			}
			return []value.Value{value.String(in)}, nil
		},
	})
	base.MustRegister(operator.Definition{
		Kind:    KindPanic,
		Name:    "Panic",
		Inputs:  []operator.Port{{ID: "input", Name: "Input"}},
		Outputs: []operator.Port{{ID: "output", Name: "Output"}},
		Transform: func(_ []value.Value, _ value.Object) ([]value.Value, error) {
			panic("boom")
		},
	})
	return NewCountingRegistry(base)
}
