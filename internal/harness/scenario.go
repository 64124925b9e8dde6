package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one compile scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixtures lists CUE files defining the typed IR bodies of the image.
	// Paths are relative to the scenario file.
	Fixtures []string `yaml:"fixtures"`

	// Steps run in order against one driver.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step compiles or invalidates one specialization. Exactly one of
// Compile and Invalidate is set.
type Step struct {
	Compile    string `yaml:"compile,omitempty"`
	Invalidate string `yaml:"invalidate,omitempty"`

	// Stage is "lower" (the default, through the driver) or "translate"
	// (the jlir function, bypassing the driver and its journal).
	Stage string `yaml:"stage,omitempty"`

	// Expect, if set, is checked against the step's outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Stage names.
const (
	StageLower     = "lower"
	StageTranslate = "translate"
)

// Expect describes the expected outcome of a compile step.
type Expect struct {
	// Outcome is "ready" or a driver error kind.
	Outcome string `yaml:"outcome"`

	// Code is the expected T1xx or V2xx error code.
	Code string `yaml:"code,omitempty"`

	// Contains lists substrings of the printed function.
	Contains []string `yaml:"contains,omitempty"`
}

// Assertion checks the final state of a run.
type Assertion struct {
	Type    string `yaml:"type"`
	Spec    string `yaml:"spec,omitempty"`
	Op      string `yaml:"op,omitempty"`
	Entry   string `yaml:"entry,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Count   int    `yaml:"count"`
}

// Assertion type constants.
const (
	AssertOpCount      = "op_count"
	AssertEntryCalls   = "entry_calls"
	AssertJournalCount = "journal_count"
)

var outcomes = map[string]bool{
	"ready":        true,
	"unavailable":  true,
	"translation":  true,
	"verification": true,
	"internal":     true,
}

// LoadScenario reads and parses a scenario YAML file, resolving fixture
// paths relative to it. Returns an error if the file doesn't exist, is
// malformed, contains unknown fields (typos), or is missing required
// fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, f := range scenario.Fixtures {
		if !filepath.IsAbs(f) {
			scenario.Fixtures[i] = filepath.Join(base, f)
		}
	}
	for _, f := range scenario.Fixtures {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: fixture file not found: %s", f)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Fixture paths are left as written.
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

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Fixtures) == 0 {
		return fmt.Errorf("fixtures list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	switch {
	case st.Compile == "" && st.Invalidate == "":
		return fmt.Errorf("steps[%d]: compile or invalidate is required", index)
	case st.Compile != "" && st.Invalidate != "":
		return fmt.Errorf("steps[%d]: compile and invalidate are exclusive", index)
	}

	if st.Invalidate != "" {
		if st.Stage != "" || st.Expect != nil {
			return fmt.Errorf("steps[%d]: invalidate takes no stage or expect", index)
		}
		return nil
	}

	switch st.Stage {
	case "":
		st.Stage = StageLower
	case StageLower, StageTranslate:
	default:
		return fmt.Errorf("steps[%d]: unknown stage %q", index, st.Stage)
	}
	if st.Expect != nil && !outcomes[st.Expect.Outcome] {
		return fmt.Errorf("steps[%d].expect: unknown outcome %q", index, st.Expect.Outcome)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertOpCount:
		if a.Spec == "" || a.Op == "" {
			return fmt.Errorf("assertions[%d]: spec and op are required for op_count", index)
		}
	case AssertEntryCalls:
		if a.Spec == "" || a.Entry == "" {
			return fmt.Errorf("assertions[%d]: spec and entry are required for entry_calls", index)
		}
	case AssertJournalCount:
		if a.Outcome != "" && !outcomes[a.Outcome] {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
