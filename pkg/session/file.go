package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads a session configuration from a YAML file. Fields not
// present in the file keep their defaults.
//
//	region: us-west-2
//	endpoint: http://localhost:8000
//	maxRetries: 5
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse session config %s: %w", path, err)
	}
	return cfg, nil
}
