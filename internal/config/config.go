// Package config loads the event catalog: which events exist and their
// public limits, plus store settings.
//
// Catalogs are written in CUE (validated against the embedded schema.cue)
// or YAML (decoded strictly, unknown fields rejected). Both formats then go
// through the same Go-side validation.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE []byte

// Settings tunes store limits. Zero values mean "use the store default".
type Settings struct {
	MaxQuantity  int `json:"max_quantity,omitempty" yaml:"max_quantity"`
	MaxExpansion int `json:"max_expansion,omitempty" yaml:"max_expansion"`
}

// Event is one catalog entry.
type Event struct {
	ID     string           `json:"id" yaml:"id"`
	Name   string           `json:"name,omitempty" yaml:"name"`
	Public inventory.Counts `json:"public" yaml:"public"`
}

// Catalog is the decoded configuration file.
type Catalog struct {
	Settings Settings `json:"settings,omitempty" yaml:"settings"`
	Events   []Event  `json:"events" yaml:"events"`
}

var eventIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return parseCUE("default.cue", defaultCUE)
}

// Load reads a catalog file. The format is chosen by extension:
// .cue for CUE, .yaml/.yml for YAML. An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		return parseCUE(path, data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q: use .cue, .yaml or .yml", ext)
	}
}

func parseCUE(filename string, data []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling catalog schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", filename, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating %s: %w", filename, err)
	}

	var c Catalog
	if err := unified.Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filename, err)
	}
	return finish(&c)
}

func parseYAML(data []byte) (*Catalog, error) {
	var c Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return finish(&c)
}

func finish(c *Catalog) (*Catalog, error) {
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// normalize trims ids and names and puts them in Unicode NFC so the same
// event typed two ways maps to one key.
func (c *Catalog) normalize() {
	for i := range c.Events {
		ev := &c.Events[i]
		ev.ID = NormalizeEventID(ev.ID)
		ev.Name = norm.NFC.String(strings.TrimSpace(ev.Name))
	}
}

// NormalizeEventID trims, NFC-normalizes and lowercases an event id.
func NormalizeEventID(id string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(id)))
}

// Validate checks the catalog for structural problems.
func (c *Catalog) Validate() error {
	if len(c.Events) == 0 {
		return fmt.Errorf("catalog has no events")
	}
	if c.Settings.MaxQuantity < 0 || c.Settings.MaxExpansion < 0 {
		return fmt.Errorf("settings must not be negative")
	}

	seen := make(map[string]bool, len(c.Events))
	for i, ev := range c.Events {
		if !eventIDPattern.MatchString(ev.ID) {
			return fmt.Errorf("events[%d]: invalid id %q", i, ev.ID)
		}
		if seen[ev.ID] {
			return fmt.Errorf("events[%d]: duplicate id %q", i, ev.ID)
		}
		seen[ev.ID] = true
		if ev.Public.GA < 0 || ev.Public.VIP < 0 {
			return fmt.Errorf("events[%d] %q: public limits must not be negative", i, ev.ID)
		}
	}
	return nil
}

// Limits converts the catalog into store initialization entries.
func (c *Catalog) Limits() []inventory.EventLimits {
	out := make([]inventory.EventLimits, 0, len(c.Events))
	for _, ev := range c.Events {
		out = append(out, inventory.EventLimits{
			EventID: ev.ID,
			Name:    ev.Name,
			Public:  ev.Public,
		})
	}
	return out
}

// StoreOptions returns the inventory options implied by Settings.
func (c *Catalog) StoreOptions() []inventory.Option {
	var opts []inventory.Option
	if c.Settings.MaxQuantity > 0 {
		opts = append(opts, inventory.WithMaxQuantity(c.Settings.MaxQuantity))
	}
	if c.Settings.MaxExpansion > 0 {
		opts = append(opts, inventory.WithMaxExpansion(c.Settings.MaxExpansion))
	}
	return opts
}
