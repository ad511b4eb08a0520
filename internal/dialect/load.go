package dialect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a dialect record.
//
//	version: mysql-8.0.35
//	placeholder: dollar
//	parameterizedLimit: false
//	capabilities:
//	  LATERAL: false
type File struct {
	Version            string              `yaml:"version"`
	DSN                string              `yaml:"dsn,omitempty"`
	Placeholder        string              `yaml:"placeholder,omitempty"`
	ParameterizedLimit *bool               `yaml:"parameterizedLimit,omitempty"`
	BoolLiterals       *bool               `yaml:"boolLiterals,omitempty"`
	NoBackslashEscapes *bool               `yaml:"noBackslashEscapes,omitempty"`
	ANSIQuotes         *bool               `yaml:"ansiQuotes,omitempty"`
	LimitZeroDefect    *bool               `yaml:"limitZeroDefect,omitempty"`
	Capabilities       map[Capability]bool `yaml:"capabilities,omitempty"`
}

// Load reads a YAML dialect file.
func Load(path string) (*Dialect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dialect file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes a YAML dialect record.
func Parse(data []byte) (*Dialect, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode dialect: %w", err)
	}
	return f.Dialect()
}

// Dialect builds the dialect the record describes.
func (f File) Dialect() (*Dialect, error) {
	if f.Version == "" {
		return nil, fmt.Errorf("dialect: version is required")
	}
	var opts []Option
	if f.Placeholder != "" {
		opts = append(opts, WithPlaceholder(f.Placeholder))
	}
	if f.ParameterizedLimit != nil {
		opts = append(opts, WithParameterizedLimit(*f.ParameterizedLimit))
	}
	if f.BoolLiterals != nil {
		opts = append(opts, WithBoolLiterals(*f.BoolLiterals))
	}
	if f.NoBackslashEscapes != nil {
		opts = append(opts, WithNoBackslashEscapes(*f.NoBackslashEscapes))
	}
	if f.ANSIQuotes != nil {
		opts = append(opts, WithANSIQuotes(*f.ANSIQuotes))
	}
	if f.LimitZeroDefect != nil {
		opts = append(opts, WithLimitZeroDefect(*f.LimitZeroDefect))
	}
	for _, c := range Capabilities {
		if on, ok := f.Capabilities[c]; ok {
			opts = append(opts, WithCapability(c, on))
		}
	}
	for c := range f.Capabilities {
		if _, ok := minVersions[c]; !ok {
			return nil, fmt.Errorf("dialect: unknown capability %q", c)
		}
	}
	if f.DSN != "" {
		return FromDSN(f.DSN, f.Version, opts...)
	}
	return New(f.Version, opts...)
}
