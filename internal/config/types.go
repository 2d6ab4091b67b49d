package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Document is the declarative upgrade configuration for one target type.
type Document struct {
	Upgrades  []Entry             `yaml:"upgrades,omitempty" validate:"omitempty,dive"`
	Pipelines map[string]Pipeline `yaml:"pipelines,omitempty" validate:"omitempty,dive"`
}

// Pipeline is a named list of upgrade entries.
type Pipeline struct {
	Upgrades []Entry `yaml:"upgrades" validate:"required,min=1,dive"`
}

// Entry declares one operation bound to a version transition. Keys other
// than the four reserved ones are kept in Params for the operation itself.
type Entry struct {
	Operation      string `yaml:"operation" validate:"required,operation_name"`
	CurrentVersion string `yaml:"currentVersion" validate:"required,version"`
	NextVersion    string `yaml:"nextVersion" validate:"required,version"`
	Enabled        bool   `yaml:"enabled"`
	Params         Params `yaml:"-"`

	// Line is the 1-based line of the entry in its source document, or 0.
	Line int `yaml:"-"`
}

var reservedEntryKeys = map[string]struct{}{
	"operation":      {},
	"currentVersion": {},
	"nextVersion":    {},
	"enabled":        {},
}

// UnmarshalYAML decodes the reserved keys, defaults enabled to true and
// collects everything else as operation parameters.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: upgrade entry must be a mapping", value.Line)
	}

	type baseEntry struct {
		Operation      string `yaml:"operation"`
		CurrentVersion string `yaml:"currentVersion"`
		NextVersion    string `yaml:"nextVersion"`
		Enabled        *bool  `yaml:"enabled"`
	}

	var base baseEntry
	if err := value.Decode(&base); err != nil {
		return err
	}

	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	e.Operation = base.Operation
	e.CurrentVersion = base.CurrentVersion
	e.NextVersion = base.NextVersion
	e.Enabled = true
	if base.Enabled != nil {
		e.Enabled = *base.Enabled
	}
	e.Line = value.Line

	e.Params = make(Params, len(raw))
	for key, val := range raw {
		if _, reserved := reservedEntryKeys[key]; reserved {
			continue
		}
		e.Params[key] = val
	}

	return nil
}

// MarshalYAML flattens Params back next to the reserved keys.
func (e Entry) MarshalYAML() (any, error) {
	out := make(map[string]any, len(e.Params)+4)
	for key, val := range e.Params {
		out[key] = val
	}
	out["operation"] = e.Operation
	out["currentVersion"] = e.CurrentVersion
	out["nextVersion"] = e.NextVersion
	if !e.Enabled {
		out["enabled"] = false
	}
	return out, nil
}

// Entries returns the upgrade list for the named pipeline. An empty name
// selects the top-level list.
func (d *Document) Entries(pipeline string) ([]Entry, error) {
	if d == nil {
		return nil, fmt.Errorf("configuration document is nil")
	}
	if pipeline == "" {
		return d.Upgrades, nil
	}
	p, ok := d.Pipelines[pipeline]
	if !ok {
		return nil, fmt.Errorf("pipeline %q is not defined (available: %v)", pipeline, d.PipelineNames())
	}
	return p.Upgrades, nil
}

// PipelineNames returns the sorted names of the named pipelines.
func (d *Document) PipelineNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Pipelines))
	for name := range d.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
