package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchemeConfig names one typing scheme and the metadata column carrying its
// sequence-type codes. Builtin selects the built-in canonical anchor table
// (currently available for the Pasteur scheme only); otherwise the anchors
// must come from the anchor file.
type SchemeConfig struct {
	Name    string `yaml:"name"`
	Column  string `yaml:"column"`
	Builtin bool   `yaml:"builtin,omitempty"`
}

// RunConfig is the optional YAML run configuration. Every field is a
// default: values set explicitly on the command line win. Pointer fields
// distinguish "absent" from zero values.
type RunConfig struct {
	TipColumn      string         `yaml:"tip_column,omitempty"`
	LabelColumn    string         `yaml:"ic_column,omitempty"`
	MinSupport     *int           `yaml:"min_support,omitempty"`
	MinProp        *float64       `yaml:"min_prop,omitempty"`
	ForceOverwrite *bool          `yaml:"force_overwrite,omitempty"`
	TieBreak       string         `yaml:"tie_break,omitempty"`
	Workers        *int           `yaml:"workers,omitempty"`
	AnchorFile     string         `yaml:"anchor_file,omitempty"`
	Schemes        []SchemeConfig `yaml:"schemes,omitempty"`
	GroupColumns   []string       `yaml:"group_columns,omitempty"`
}

// LoadRunConfig reads and parses a run configuration YAML file.
// Unknown fields are rejected (catches typos like "min_suport:").
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	for i, scheme := range cfg.Schemes {
		if scheme.Name == "" || scheme.Column == "" {
			return nil, fmt.Errorf("config %s: schemes[%d] needs both name and column", path, i)
		}
	}
	if len(cfg.Schemes) > 2 {
		return nil, fmt.Errorf("config %s: at most two typing schemes are supported", path)
	}

	return &cfg, nil
}
