package harness

import (
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/textflow/internal/value"
)

// GoldenDir is where scenario golden files live, relative to the test's
// package directory.
const GoldenDir = "testdata/scenarios/golden"

// Snapshot renders a result as JSON: the per-step trace plus the
// final graph. Identical runs produce identical bytes.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(value.Array, len(result.Trace))
	for i, ev := range result.Trace {
		obj := value.Object{
			"step":      value.Number(strconv.Itoa(ev.Step)),
			"op":        value.String(ev.Op),
			"seq":       value.Number(strconv.FormatInt(ev.Seq, 10)),
			"evaluated": stringArray(ev.Evaluated),
			"failed":    stringArray(ev.Failed),
			"skipped":   stringArray(ev.Skipped),
			"blocked":   stringArray(ev.Blocked),
			"changed":   value.Bool(ev.Changed),
		}
		if ev.Target != "" {
			obj["target"] = value.String(ev.Target)
		}
		if ev.Error != "" {
			obj["error"] = value.String(ev.Error)
		}
		trace[i] = obj
	}

	nodes := make(value.Array, len(result.Final))
	for i, n := range result.Final {
		obj := value.Object{
			"name":    value.String(n.Name),
			"kind":    value.String(n.Kind),
			"outputs": n.Outputs.Clone(),
		}
		if n.Error != "" {
			obj["error"] = value.String(n.Error)
		}
		if n.Incoming != nil {
			obj["incoming"] = n.Incoming
		}
		nodes[i] = obj
	}

	return value.Marshal(value.Object{
		"scenario": value.String(name),
		"trace":    trace,
		"final": value.Object{
			"nodes": nodes,
			"cycle": stringArray(result.Cycle),
		},
	})
}

// RunWithGolden executes a scenario, fails the test on any failed
// expectation, and compares the snapshot against GoldenDir/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Error(e)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

func stringArray(ss []string) value.Array {
	arr := make(value.Array, len(ss))
	for i, s := range ss {
		arr[i] = value.String(s)
	}
	return arr
}
