package policy

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML representation of a table.
//
//	fallback: public
//	rules:
//	  - name: current-user
//	    pattern: /api/me/**
//	    access: authenticated
type File struct {
	Fallback Access `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// UnmarshalYAML accepts the textual access names.
func (a *Access) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseAccess(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalYAML writes the textual access name.
func (a Access) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// Parse builds a table from YAML bytes. Unknown keys are rejected.
func Parse(data []byte) (*Table, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse policy yaml: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("policy must declare at least one rule")
	}
	return NewTable(f.Fallback, f.Rules...)
}

// Load reads a table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Encode renders a table back to YAML, e.g. to bootstrap a policy file.
func Encode(t *Table) ([]byte, error) {
	return yaml.Marshal(File{Fallback: t.Fallback(), Rules: t.Rules()})
}
