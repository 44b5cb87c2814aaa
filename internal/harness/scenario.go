package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/morph/internal/change"
)

// Scenario defines a conformance test scenario: an initial value, the
// steps that mutate it and what the resulting change must look like.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the journal stream
	// and the golden file.
	Name string `yaml:"name" validate:"required"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the value before the steps. Any YAML value.
	Initial any `yaml:"initial"`

	// Schema optionally constrains the final value.
	Schema *SchemaRef `yaml:"schema,omitempty"`

	// Steps mutate the value, in order.
	Steps []Step `yaml:"steps" validate:"required,min=1,dive"`

	// Expect describes the whole-scenario change. Nil skips the check.
	Expect *Expect `yaml:"expect,omitempty"`

	// Assertions validate the change and the final value.
	Assertions []Assertion `yaml:"assertions" validate:"dive"`

	// dir is the directory of the scenario file. Schema paths are
	// relative to it.
	dir string
}

// SchemaRef points at a CUE schema.
type SchemaRef struct {
	// File is the CUE source, relative to the scenario file.
	File string `yaml:"file" validate:"required"`

	// Definition selects a value inside the file, e.g. "#Config".
	Definition string `yaml:"definition"`
}

// Step is one mutation.
type Step struct {
	Op   string `yaml:"op" validate:"required,oneof=set append delete truncate"`
	Path string `yaml:"path" validate:"changepath"`

	// Value is the new value (set) or the fragment (append). An append of
	// a list onto a list appends its elements.
	Value any `yaml:"value"`

	// Len is the new length (truncate).
	Len *int `yaml:"len,omitempty" validate:"omitempty,min=0"`
}

// Step ops.
const (
	OpSet      = "set"
	OpAppend   = "append"
	OpDelete   = "delete"
	OpTruncate = "truncate"
)

// Expect specifies the expected whole-scenario change.
type Expect struct {
	// Unchanged expects no change at all.
	Unchanged bool `yaml:"unchanged"`

	// Leaves is the exact list of Replace/Append leaves in tree order.
	Leaves []ExpectedLeaf `yaml:"leaves" validate:"dive"`

	// SchemaError expects the final value to violate the schema.
	SchemaError bool `yaml:"schema_error"`
}

// ExpectedLeaf is one expected Replace or Append.
type ExpectedLeaf struct {
	Op    string `yaml:"op" validate:"required,oneof=replace append"`
	Path  string `yaml:"path" validate:"changepath"`
	Value any    `yaml:"value"`
}

// Assertion validates the change or the final value.
type Assertion struct {
	// Type is one of change_contains, change_order, change_count and
	// final_value.
	Type string `yaml:"type" validate:"required,oneof=change_contains change_order change_count final_value"`

	// Path is the leaf path (change_contains) or value path (final_value).
	Path string `yaml:"path,omitempty" validate:"changepath"`

	// Op restricts change_contains to one leaf kind.
	Op string `yaml:"op,omitempty" validate:"omitempty,oneof=replace append"`

	// Value is the expected payload (change_contains, where null means
	// any) or the expected final value (final_value).
	Value any `yaml:"value,omitempty"`

	// Paths is the expected leaf order (change_order).
	Paths []string `yaml:"paths,omitempty" validate:"dive,changepath"`

	// Count is the expected number of leaves (change_count).
	Count *int `yaml:"count,omitempty" validate:"omitempty,min=0"`
}

// Assertion type constants.
const (
	AssertChangeContains = "change_contains"
	AssertChangeOrder    = "change_order"
	AssertChangeCount    = "change_count"
	AssertFinalValue     = "final_value"
)

// scenarioValidate is the validator for scenario files.
var scenarioValidate *validator.Validate

func init() {
	scenarioValidate = validator.New()
	_ = scenarioValidate.RegisterValidation("changepath", validateChangePath)
}

// validateChangePath accepts strings change.ParsePath accepts.
func validateChangePath(fl validator.FieldLevel) bool {
	_, err := change.ParsePath(fl.Field().String())
	return err == nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. Schema paths resolve against the
// working directory.
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

// validateScenario checks struct tags, then the rules that depend on
// more than one field.
func validateScenario(s *Scenario) error {
	if err := scenarioValidate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(step, i); err != nil {
			return err
		}
	}
	if s.Expect != nil && s.Expect.Unchanged && len(s.Expect.Leaves) > 0 {
		return errors.New("expect: unchanged and leaves are mutually exclusive")
	}
	if s.Expect != nil && s.Expect.SchemaError && s.Schema == nil {
		return errors.New("expect: schema_error requires a schema")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, index int) error {
	switch step.Op {
	case OpDelete:
		if step.Path == "" {
			return fmt.Errorf("steps[%d]: delete requires a path", index)
		}
	case OpTruncate:
		if step.Len == nil {
			return fmt.Errorf("steps[%d]: len is required for truncate", index)
		}
	}
	if step.Len != nil && step.Op != OpTruncate {
		return fmt.Errorf("steps[%d]: len is only valid for truncate", index)
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	switch a.Type {
	case AssertChangeContains:
		if a.Path == "" && a.Op == "" {
			return fmt.Errorf("assertions[%d]: path or op is required for change_contains", index)
		}
	case AssertChangeOrder:
		if len(a.Paths) < 2 {
			return fmt.Errorf("assertions[%d]: at least two paths are required for change_order", index)
		}
	case AssertChangeCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for change_count", index)
		}
	}
	return nil
}
