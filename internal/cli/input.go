package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// isYAML reports whether path names a YAML file. Everything else is read
// as JSON.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadValue reads a JSON or YAML document into its encoded form.
func LoadValue(path string) (ir.IRValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseValue(path, data)
}

func parseValue(path string, data []byte) (ir.IRValue, error) {
	if !isYAML(path) {
		v, err := ir.UnmarshalIRValue(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return v, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Kind == 0 {
		return ir.IRNull{}, nil
	}
	v, err := adapter.NodeToIR(&doc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// LoadChange reads a change in wire form, as JSON or YAML.
func LoadChange(path string) (*change.Change, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c *change.Change
	if isYAML(path) {
		c, err = adapter.UnmarshalChangeYAML(data)
	} else {
		c, err = adapter.UnmarshalChange(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}
