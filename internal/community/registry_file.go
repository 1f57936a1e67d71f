package community

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type registryFile struct {
	MaxDistanceKM float64     `yaml:"max_distance_km"`
	Communities   []Community `yaml:"communities"`
}

// LoadRegistryFile reads a YAML registry override. A missing
// max_distance_km falls back to MaxDistanceKM.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read community registry: %w", err)
	}

	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	var raw registryFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse community registry: %w", err)
	}

	if raw.MaxDistanceKM == 0 {
		raw.MaxDistanceKM = MaxDistanceKM
	}

	return NewRegistry(raw.Communities, raw.MaxDistanceKM)
}
