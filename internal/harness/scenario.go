package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/config"
)

// Scenario defines an inventory test scenario.
// A scenario seeds a fresh store with its own events, runs a list of steps
// with optional expectations, and finally checks the resulting state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Settings overrides store limits for this run.
	Settings config.Settings `yaml:"settings,omitempty"`

	// Events seeds the store. Same shape as a catalog file.
	Events []config.Event `yaml:"events"`

	// Steps run in order. A step with repeat > 1 runs that many times,
	// in parallel when concurrent is set.
	Steps []Step `yaml:"steps"`

	// Assertions validate final state after all steps.
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	OpDecrement = "decrement"
	OpConfirm   = "confirm"
	OpExpand    = "expand"
	OpReset     = "reset"
	OpCheck     = "check"
)

var validOps = map[string]bool{
	OpDecrement: true,
	OpConfirm:   true,
	OpExpand:    true,
	OpReset:     true,
	OpCheck:     true,
}

// Step is one operation against the store.
type Step struct {
	Op    string `yaml:"op"`
	Event string `yaml:"event"`

	// Tier is passed through unparsed so scenarios can exercise bad input.
	Tier string `yaml:"tier,omitempty"`

	// Quantity applies to decrement, confirm and check.
	Quantity int `yaml:"quantity,omitempty"`

	// Spots applies to expand.
	Spots int `yaml:"spots,omitempty"`

	AuthorizedBy string            `yaml:"authorized_by,omitempty"`
	Reason       string            `yaml:"reason,omitempty"`
	Metadata     map[string]string `yaml:"metadata,omitempty"`

	// PaymentIntentID and SessionID apply to confirm.
	PaymentIntentID string `yaml:"payment_intent_id,omitempty"`
	SessionID       string `yaml:"session_id,omitempty"`

	Repeat     int  `yaml:"repeat,omitempty"`
	Concurrent bool `yaml:"concurrent,omitempty"`

	// Expect is optional. Without it the step may succeed or fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a step. Only set fields are
// checked.
type Expect struct {
	// Single-call expectations.
	Success     *bool  `yaml:"success,omitempty"`
	Code        string `yaml:"code,omitempty"`
	Available   *int   `yaml:"available,omitempty"`
	NewLimit    *int   `yaml:"new_limit,omitempty"`
	Message     string `yaml:"message,omitempty"`
	Escalated   *bool  `yaml:"escalated,omitempty"`
	Suggestions *int   `yaml:"suggestions,omitempty"`

	// Repeated-step expectations. Code, when set, must match every failure.
	Successes *int `yaml:"successes,omitempty"`
	Failures  *int `yaml:"failures,omitempty"`
}

// Assertion checks the final state of one event. Only set fields are
// checked; tier maps are subset matches.
type Assertion struct {
	Event           string         `yaml:"event"`
	Public          map[string]int `yaml:"public,omitempty"`
	Actual          map[string]int `yaml:"actual,omitempty"`
	Sold            map[string]int `yaml:"sold,omitempty"`
	PublicAvailable map[string]int `yaml:"public_available,omitempty"`
	ActualAvailable map[string]int `yaml:"actual_available,omitempty"`
	PublicSoldOut   *bool          `yaml:"public_sold_out,omitempty"`
	ActualSoldOut   *bool          `yaml:"actual_sold_out,omitempty"`
	Transactions    *int           `yaml:"transactions,omitempty"`
	Expansions      *int           `yaml:"expansions,omitempty"`
	Escalations     *int           `yaml:"escalations,omitempty"`
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

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every .yaml/.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
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

	cat := config.Catalog{Settings: s.Settings, Events: s.Events}
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required", i)
		}
		for _, m := range []map[string]int{a.Public, a.Actual, a.Sold, a.PublicAvailable, a.ActualAvailable} {
			for tier := range m {
				if tier != "ga" && tier != "vip" {
					return fmt.Errorf("assertions[%d]: unknown tier %q", i, tier)
				}
			}
		}
	}
	return nil
}

func validateStep(i int, step *Step) error {
	if !validOps[step.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	if step.Repeat < 0 {
		return fmt.Errorf("steps[%d]: repeat must be non-negative", i)
	}
	if step.Concurrent && step.Repeat < 2 {
		return fmt.Errorf("steps[%d]: concurrent requires repeat >= 2", i)
	}
	if e := step.Expect; e != nil {
		repeated := step.Repeat > 1
		if repeated && (e.Success != nil || e.Available != nil || e.NewLimit != nil || e.Suggestions != nil) {
			return fmt.Errorf("steps[%d].expect: repeated steps only support successes, failures and code", i)
		}
		if !repeated && (e.Successes != nil || e.Failures != nil) {
			return fmt.Errorf("steps[%d].expect: successes and failures require repeat >= 2", i)
		}
	}
	return nil
}
