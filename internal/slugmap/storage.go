package slugmap

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type document struct {
	Articles []Entry `yaml:"articles"`
}

func Save(path string, m *Map) error {
	if m == nil {
		return fmt.Errorf("slug map is nil")
	}

	data, err := yaml.Marshal(document{Articles: m.Entries()})
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse slug map: %w", err)
	}
	return New(doc.Articles)
}

// LoadOrDefault reads path when it exists and returns the built-in table
// otherwise.
func LoadOrDefault(path string) (*Map, error) {
	if path == "" {
		return Default(), nil
	}
	m, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return m, err
}
