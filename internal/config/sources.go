package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSourceNames reads a YAML mapping of stored source identifiers to the
// display names used in citations. An empty path yields no mapping.
func LoadSourceNames(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: source names file %s does not exist", path)
		}
		return nil, fmt.Errorf("config: read source names: %w", err)
	}
	names := map[string]string{}
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("config: decode source names %s: %w", path, err)
	}
	for k, v := range names {
		if strings.TrimSpace(v) == "" {
			delete(names, k)
		}
	}
	return names, nil
}
