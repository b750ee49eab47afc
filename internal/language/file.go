package language

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a table:
//
//	default: English
//	languages:
//	  - name: English
//	    code: en
type File struct {
	Default   string  `yaml:"default"`
	Languages []Entry `yaml:"languages"`
}

// Decode reads a YAML table. defaultName is used when the file names none.
func Decode(r io.Reader, defaultName string) (*Table, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode language table: %w", err)
	}
	if f.Default == "" {
		f.Default = defaultName
	}
	return NewTable(f.Languages, f.Default)
}

// Load returns the table from path, or the built-in entries when path is
// empty. defaultName selects the source language of the built-in table.
func Load(path, defaultName string) (*Table, error) {
	if defaultName == "" {
		defaultName = DefaultName
	}
	if path == "" {
		return NewTable(DefaultEntries, defaultName)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open language table: %w", err)
	}
	defer f.Close()

	return Decode(f, defaultName)
}
