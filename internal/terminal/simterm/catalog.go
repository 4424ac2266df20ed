package simterm

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"termbridge/internal/terminal"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Instrument is one catalog entry plus the price the walk starts from.
type Instrument struct {
	terminal.SymbolInfo `yaml:",inline"`
	Price               float64 `yaml:"price"`
	Spread              float64 `yaml:"spread"`
}

type Catalog struct {
	Symbols []Instrument `yaml:"symbols"`
}

// DefaultCatalog returns the built-in catalog of majors, metals, indices and crypto.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a yaml catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

// Validate rejects blank or duplicate names and non-positive prices.
func (c *Catalog) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("no symbols")
	}
	seen := make(map[string]struct{}, len(c.Symbols))
	for i, s := range c.Symbols {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("symbol %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate symbol %q", name)
		}
		seen[name] = struct{}{}
		if s.Price <= 0 {
			return fmt.Errorf("symbol %q: price must be positive", name)
		}
		if s.Spread < 0 {
			return fmt.Errorf("symbol %q: negative spread", name)
		}
	}
	return nil
}
