package schema

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed fields.yaml
var defaultFieldsYAML []byte

type fieldsFile struct {
	Fields []Field `yaml:"fields"`
}

// LoadDefault returns the built-in onboarding field set.
func LoadDefault() (*Registry, error) {
	return parse(defaultFieldsYAML)
}

// LoadFile reads a field schema from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var ff fieldsFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	reg, err := NewRegistry(ff.Fields)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return reg, nil
}
