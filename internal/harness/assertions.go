package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/testutil"
	"github.com/roach88/textflow/internal/value"
)

// Expectation types reported by AssertionError.
const (
	AssertDisplay     = "display"
	AssertOutput      = "output"
	AssertError       = "error"
	AssertOK          = "ok"
	AssertCycle       = "cycle"
	AssertInvocations = "invocations"
	AssertChanged     = "changed"
)

// InvocationsTotal is the invocations key that counts every kind.
const InvocationsTotal = "total"

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Step     int
	Type     string
	Subject  string // Node, kind or port the expectation is about
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	subject := ""
	if e.Subject != "" {
		subject = " " + e.Subject
	}
	return fmt.Sprintf("step %d: %s%s: expected %s, got %s", e.Step, e.Type, subject, e.Expected, e.Actual)
}

// AssertionContext is what expectations are checked against.
type AssertionContext struct {
	Step    int
	View    engine.View
	Changed bool
	Counter *testutil.Counter

	// IDs resolves a scenario name; Names maps ids back.
	IDs   func(name string) graph.NodeID
	Names func(ids []graph.NodeID) []string
}

// EvaluateExpect checks every set field of exp, in a fixed order.
func EvaluateExpect(exp *Expect, actx *AssertionContext) []*AssertionError {
	var errs []*AssertionError
	fail := func(typ, subject, expected, actual string) {
		errs = append(errs, &AssertionError{Step: actx.Step, Type: typ, Subject: subject, Expected: expected, Actual: actual})
	}

	node := func(typ, name string) (engine.NodeView, bool) {
		nv, ok := actx.View.Node(actx.IDs(name))
		if !ok {
			fail(typ, name, "node to exist", "no such node")
		}
		return nv, ok
	}

	for _, name := range sortedKeys(exp.Display) {
		nv, ok := node(AssertDisplay, name)
		if !ok {
			continue
		}
		want, err := expected(exp.Display[name])
		if err != nil {
			fail(AssertDisplay, name, "a valid expected value", err.Error())
			continue
		}
		if nv.Incoming == nil {
			fail(AssertDisplay, name, show(want), "a node that is not a display")
			continue
		}
		if !value.Equal(want, nv.Incoming) {
			fail(AssertDisplay, name, show(want), show(nv.Incoming))
		}
	}

	for _, name := range sortedKeys(exp.Output) {
		nv, ok := node(AssertOutput, name)
		if !ok {
			continue
		}
		ports := exp.Output[name]
		for _, port := range sortedKeys(ports) {
			want, err := expected(ports[port])
			if err != nil {
				fail(AssertOutput, name+"."+port, "a valid expected value", err.Error())
				continue
			}
			if got := nv.Output(port); !value.Equal(want, got) {
				fail(AssertOutput, name+"."+port, show(want), show(got))
			}
		}
	}

	for _, name := range sortedKeys(exp.Error) {
		nv, ok := node(AssertError, name)
		if !ok {
			continue
		}
		substr := exp.Error[name]
		switch {
		case !nv.Error:
			fail(AssertError, name, fmt.Sprintf("failure containing %q", substr), "no failure")
		case !strings.Contains(nv.ErrorMessage, substr):
			fail(AssertError, name, fmt.Sprintf("failure containing %q", substr), fmt.Sprintf("%q", nv.ErrorMessage))
		}
	}

	for _, name := range exp.OK {
		nv, ok := node(AssertOK, name)
		if ok && nv.Error {
			fail(AssertOK, name, "no failure", fmt.Sprintf("%q", nv.ErrorMessage))
		}
	}

	if exp.Cycle != nil {
		got := []string{}
		if actx.View.Cycle != nil {
			got = actx.Names(actx.View.Cycle.Nodes)
		}
		if !slices.Equal(exp.Cycle, got) {
			fail(AssertCycle, "", fmt.Sprintf("%v", exp.Cycle), fmt.Sprintf("%v", got))
		}
	}

	for _, kind := range sortedKeys(exp.Invocations) {
		want := exp.Invocations[kind]
		var got int
		if kind == InvocationsTotal {
			got = actx.Counter.Total()
		} else {
			got = actx.Counter.Count(operator.Kind(kind))
		}
		if got != want {
			fail(AssertInvocations, kind, fmt.Sprintf("%d", want), fmt.Sprintf("%d", got))
		}
	}

	if exp.Changed != nil && *exp.Changed != actx.Changed {
		fail(AssertChanged, "", fmt.Sprintf("%t", *exp.Changed), fmt.Sprintf("%t", actx.Changed))
	}

	return errs
}

// expected converts a scenario expectation to a Value. A bare null in a
// scenario means the slot holds no value.
func expected(raw any) (value.Value, error) {
	if raw == nil {
		return value.Undefined{}, nil
	}
	return value.FromAny(raw)
}

// show renders a value for messages. Undefined reads as "no value".
func show(v value.Value) string {
	if value.IsUndefined(v) {
		return "no value"
	}
	b, err := value.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
