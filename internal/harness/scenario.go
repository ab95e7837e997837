package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/textflow/internal/graphfile"
	"github.com/roach88/textflow/internal/scheduler"
)

// Scenario is a scripted sequence of host operations with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy is the cycle policy: "all-or-nothing" (default) or "partial".
	Policy string `yaml:"policy,omitempty"`

	// Steps run in order; each is one host operation.
	Steps []Step `yaml:"steps"`
}

// Step is one host operation. Exactly one operation field is set.
type Step struct {
	AddNode    *AddNodeStep `yaml:"add_node,omitempty"`
	AddEdge    *EdgeStep    `yaml:"add_edge,omitempty"`
	RemoveNode NameList     `yaml:"remove_node,omitempty"`
	RemoveEdge *EdgeStep    `yaml:"remove_edge,omitempty"`
	Patch      *PatchStep   `yaml:"patch,omitempty"`
	Recompute  bool         `yaml:"recompute,omitempty"`

	// ExpectError is the error code the operation must be rejected with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Expect is checked against the engine after the step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// AddNodeStep adds a node under a scenario-local name.
type AddNodeStep struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"config,omitempty"`
}

// EdgeStep names an edge as "node.port" endpoints.
type EdgeStep struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// PatchStep shallow-merges config into a node's configuration.
type PatchStep struct {
	Node   string         `yaml:"node"`
	Config map[string]any `yaml:"config"`
}

// NameList is a list of node names. It also accepts a single scalar.
type NameList []string

// UnmarshalYAML accepts both "name" and "[a, b]".
func (l *NameList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		*l = NameList{s}
		return nil
	}
	var names []string
	if err := n.Decode(&names); err != nil {
		return err
	}
	*l = names
	return nil
}

// Expect lists what must hold after a step. Unset fields are not checked.
type Expect struct {
	Display     map[string]any            `yaml:"display,omitempty"`
	Output      map[string]map[string]any `yaml:"output,omitempty"`
	Error       map[string]string         `yaml:"error,omitempty"`
	OK          []string                  `yaml:"ok,omitempty"`
	Cycle       []string                  `yaml:"cycle"`
	Invocations map[string]int            `yaml:"invocations,omitempty"`
	Changed     *bool                     `yaml:"changed,omitempty"`
}

// Operation names used in traces.
const (
	OpAddNode    = "add_node"
	OpAddEdge    = "add_edge"
	OpRemoveNode = "remove_node"
	OpRemoveEdge = "remove_edge"
	OpPatch      = "patch"
	OpRecompute  = "recompute"
)

// Op returns the operation name, or "" if none or several are set.
func (s *Step) Op() string {
	var ops []string
	if s.AddNode != nil {
		ops = append(ops, OpAddNode)
	}
	if s.AddEdge != nil {
		ops = append(ops, OpAddEdge)
	}
	if s.RemoveNode != nil {
		ops = append(ops, OpRemoveNode)
	}
	if s.RemoveEdge != nil {
		ops = append(ops, OpRemoveEdge)
	}
	if s.Patch != nil {
		ops = append(ops, OpPatch)
	}
	if s.Recompute {
		ops = append(ops, OpRecompute)
	}
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// Target describes what the step operates on, for traces.
func (s *Step) Target() string {
	switch s.Op() {
	case OpAddNode:
		return s.AddNode.Name
	case OpAddEdge:
		return s.AddEdge.From + " -> " + s.AddEdge.To
	case OpRemoveNode:
		return strings.Join(s.RemoveNode, ",")
	case OpRemoveEdge:
		return s.RemoveEdge.From + " -> " + s.RemoveEdge.To
	case OpPatch:
		return s.Patch.Node
	default:
		return ""
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted. A
// non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	slices.Sort(files)
	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Policy != "" {
		if _, err := scheduler.ParsePolicy(s.Policy); err != nil {
			return err
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool)
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], names); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step *Step, names map[string]bool) error {
	switch step.Op() {
	case "":
		return fmt.Errorf("steps[%d]: exactly one operation is required", i)

	case OpAddNode:
		if step.AddNode.Name == "" || step.AddNode.Kind == "" {
			return fmt.Errorf("steps[%d].add_node: name and kind are required", i)
		}
		if strings.Contains(step.AddNode.Name, ".") {
			return fmt.Errorf("steps[%d].add_node: name %q may not contain dots", i, step.AddNode.Name)
		}
		if names[step.AddNode.Name] {
			return fmt.Errorf("steps[%d].add_node: name %q already used", i, step.AddNode.Name)
		}
		names[step.AddNode.Name] = true

	case OpAddEdge:
		if err := validateEdge(step.AddEdge); err != nil {
			return fmt.Errorf("steps[%d].add_edge: %w", i, err)
		}

	case OpRemoveEdge:
		if err := validateEdge(step.RemoveEdge); err != nil {
			return fmt.Errorf("steps[%d].remove_edge: %w", i, err)
		}

	case OpRemoveNode:
		if len(step.RemoveNode) == 0 {
			return fmt.Errorf("steps[%d].remove_node: at least one name is required", i)
		}

	case OpPatch:
		if step.Patch.Node == "" {
			return fmt.Errorf("steps[%d].patch: node is required", i)
		}
	}
	return nil
}

func validateEdge(e *EdgeStep) error {
	if _, err := graphfile.ParseEndpoint(e.From); err != nil {
		return err
	}
	_, err := graphfile.ParseEndpoint(e.To)
	return err
}
