package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a record-history test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IdentityKey overrides the array element identity key ("id").
	IdentityKey string `yaml:"identity_key,omitempty"`

	// Steps create and edit records, in order.
	Steps []Step `yaml:"steps"`

	// Assertions run after every step has executed.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one create, save or undo call.
type Step struct {
	// Op is one of create, save, undo.
	Op string `yaml:"op"`

	// Record is the alias the step acts on. A create binds the alias.
	Record string `yaml:"record"`

	// User and Reason attribute the change.
	User   string `yaml:"user"`
	Reason string `yaml:"reason,omitempty"`

	// Collection and Fields are used by create.
	Collection string         `yaml:"collection,omitempty"`
	Fields     map[string]any `yaml:"fields,omitempty"`

	// Set and Unset are used by save.
	Set   map[string]any `yaml:"set,omitempty"`
	Unset []string       `yaml:"unset,omitempty"`

	// Version and DryRun are used by undo.
	Version int64 `yaml:"version,omitempty"`
	DryRun  bool  `yaml:"dry_run,omitempty"`
}

// Assertion validates the history of one record.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Record is the alias the assertion inspects.
	Record string `yaml:"record"`

	// Version selects the version for history_fields, state_at,
	// previous_values, partial_undo, array_changes and not_found.
	Version *int64 `yaml:"version,omitempty"`

	// Users is the expected actor sequence (history_actors).
	Users []string `yaml:"users,omitempty"`

	// Fields is the expected field list (history_fields, partial_undo).
	Fields []string `yaml:"fields,omitempty"`

	// Field names the array field (array_changes).
	Field string `yaml:"field,omitempty"`

	// Actions is the expected action sequence (array_changes).
	Actions []string `yaml:"actions,omitempty"`

	// Expect holds the exact expected fields (state_at, previous_values,
	// latest).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpCreate = "create"
	OpSave   = "save"
	OpUndo   = "undo"
)

// Assertion type constants.
const (
	AssertHistoryActors  = "history_actors"
	AssertHistoryFields  = "history_fields"
	AssertStateAt        = "state_at"
	AssertPreviousValues = "previous_values"
	AssertLatest         = "latest"
	AssertPartialUndo    = "partial_undo"
	AssertArrayChanges   = "array_changes"
	AssertNotFound       = "not_found"
)

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

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

// validateScenario checks that required fields are present and that
// every alias is created before it is used.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	created := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, &step, created); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
		if !created[assertion.Record] {
			return fmt.Errorf("assertions[%d]: record %q is never created", i, assertion.Record)
		}
	}
	return nil
}

func validateStep(index int, step *Step, created map[string]bool) error {
	if step.Record == "" {
		return fmt.Errorf("steps[%d]: record is required", index)
	}
	if step.User == "" {
		return fmt.Errorf("steps[%d]: user is required", index)
	}

	switch step.Op {
	case OpCreate:
		if created[step.Record] {
			return fmt.Errorf("steps[%d]: record %q is already created", index, step.Record)
		}
		if step.Collection == "" {
			return fmt.Errorf("steps[%d]: collection is required for create", index)
		}
		created[step.Record] = true
		return nil
	case OpSave:
		if len(step.Set) == 0 && len(step.Unset) == 0 {
			return fmt.Errorf("steps[%d]: save needs set or unset", index)
		}
	case OpUndo:
		if step.Version < 1 {
			return fmt.Errorf("steps[%d]: undo version must be >= 1", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if !created[step.Record] {
		return fmt.Errorf("steps[%d]: record %q used before create", index, step.Record)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Record == "" {
		return fmt.Errorf("assertions[%d]: record is required", index)
	}

	needsVersion := false
	switch a.Type {
	case AssertHistoryActors:
		if len(a.Users) == 0 {
			return fmt.Errorf("assertions[%d]: users list is required for history_actors", index)
		}
	case AssertHistoryFields:
		needsVersion = true
		if a.Fields == nil {
			return fmt.Errorf("assertions[%d]: fields is required for history_fields", index)
		}
	case AssertStateAt, AssertPreviousValues:
		needsVersion = true
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertLatest:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for latest", index)
		}
	case AssertPartialUndo:
		needsVersion = true
	case AssertArrayChanges:
		needsVersion = true
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for array_changes", index)
		}
		if a.Actions == nil {
			return fmt.Errorf("assertions[%d]: actions is required for array_changes", index)
		}
	case AssertNotFound:
		needsVersion = true
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if needsVersion && a.Version == nil {
		return fmt.Errorf("assertions[%d]: version is required for %s", index, a.Type)
	}
	return nil
}
