package doctype

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// referenceFile is the on-disk layout of the reference data file.
type referenceFile struct {
	DefaultValidityDays int    `yaml:"default_validity_days"`
	DocumentTypes       []Type `yaml:"document_types"`
}

// Load reads a reference data document. Unknown keys are rejected so typos
// in the file do not silently fall back to defaults.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f referenceFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("reference data: empty document")
		}
		return nil, fmt.Errorf("reference data: %w", err)
	}
	if len(f.DocumentTypes) == 0 {
		return nil, fmt.Errorf("reference data: no document_types")
	}
	return NewCatalog(f.DocumentTypes, f.DefaultValidityDays), nil
}

// LoadFile reads the reference data file at path. An empty path yields the
// built-in catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}
