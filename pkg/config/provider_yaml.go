package config

import (
	"fmt"
	"os"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file. Analysis
// options missing from the file keep their default values.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	return ParseYAML(cfgFile)
}

// ParseYAML decodes, defaults and validates a YAML configuration document
func ParseYAML(doc []byte) (*ConfigData, error) {
	config := &ConfigData{Analysis: AnalysisData{Options: ffa.DefaultOptions()}}

	if err := yaml.Unmarshal(doc, config); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// IsReadOnly returns true as YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
