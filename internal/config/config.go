// Package config reads the optional skycat.yml configuration bundle.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/dnswlt/skycat/internal/database"
	"github.com/dnswlt/skycat/internal/report"
	"github.com/dnswlt/skycat/internal/store"
)

// DefaultPath is the config file location relative to the store root.
const DefaultPath = "skycat.yml"

// SpectraDirs configures where the per-telescope spectra files live.
type SpectraDirs struct {
	MMT     string `yaml:"mmt"`
	AAT     string `yaml:"aat"`
	AATmz   string `yaml:"aat-mz"`
	IMACS   string `yaml:"imacs"`
	Palomar string `yaml:"palomar"`
}

// Bundle is the full configuration file.
type Bundle struct {
	// Database overrides catalog locations and cache settings.
	Database database.Config `yaml:"database"`
	// Cuts maps cut names to cut expressions.
	Cuts map[string]string `yaml:"cuts"`
	// Report configures the HTML report.
	Report report.Config `yaml:"report"`
	// Spectra configures the spectra input directories.
	Spectra SpectraDirs `yaml:"spectra"`
}

// Load reads the configuration from the given store path. A missing file
// is not an error and yields the zero bundle, so every setting falls
// back to its default.
func Load(st store.Store, path string) (*Bundle, error) {
	data, err := st.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Bundle{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration bundle. Unknown fields are rejected to
// catch typos early.
func Parse(data []byte) (*Bundle, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	return &b, nil
}
