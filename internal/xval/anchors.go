package xval

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AnchorTable maps a sequence-type code to its conventionally expected
// lineage label. Codes are opaque strings compared by equality; callers may
// use bare numbers ("2") or prefixed forms ("ST2") as long as the metadata
// column uses the same convention.
type AnchorTable map[string]string

// Scheme pairs a typing scheme with the metadata column carrying its codes
// and the anchor table used to derive expectations.
type Scheme struct {
	Name    string
	Column  string
	Anchors AnchorTable
}

// BuiltinPasteur returns the canonical Pasteur MLST anchors for the
// Acinetobacter baumannii international clones.
func BuiltinPasteur() AnchorTable {
	return AnchorTable{
		"1":  "IC1",
		"2":  "IC2",
		"3":  "IC3",
		"15": "IC4",
		"79": "IC5",
		"78": "IC6",
		"25": "IC7",
		"10": "IC8",
	}
}

// anchorsFile is the on-disk YAML shape:
//
//	schemes:
//	  Pasteur:
//	    "2": IC2
//	  Oxford:
//	    "218": IC2
type anchorsFile struct {
	Schemes map[string]AnchorTable `yaml:"schemes"`
}

// LoadAnchors reads caller-supplied anchor tables from a YAML file, keyed
// by scheme name. Unknown fields are rejected to catch typos.
func LoadAnchors(path string) (map[string]AnchorTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read anchors: %w", err)
	}

	var file anchorsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse anchors %s: %w", path, err)
	}
	if len(file.Schemes) == 0 {
		return nil, fmt.Errorf("parse anchors %s: no schemes defined", path)
	}
	for name, anchors := range file.Schemes {
		if len(anchors) == 0 {
			return nil, fmt.Errorf("parse anchors %s: scheme %q has no entries", path, name)
		}
	}
	return file.Schemes, nil
}
