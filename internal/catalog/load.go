package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// LoadError wraps every failure to build a catalog from a file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load catalog %q: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Load reads a list of {author, quote} records. Files ending in .yaml or
// .yml are parsed as YAML; everything else as JSON.
func Load(path string, opts ...Option) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	quotes, err := decode(path, b)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	c, err := New(quotes, opts...)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return c, nil
}

func decode(path string, b []byte) ([]Quote, error) {
	var quotes []Quote
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &quotes); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	default:
		if len(bytes.TrimSpace(b)) == 0 {
			return nil, nil
		}
		if err := json.Unmarshal(b, &quotes); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	}
	return quotes, nil
}
