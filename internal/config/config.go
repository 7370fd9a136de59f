package config

import (
	"fmt"
	"os"

	"labelbench/internal/dataset"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Import struct {
		// "abort" fails the whole import on the first invalid row;
		// "skip" drops invalid rows and reports them.
		OnInvalid        string `yaml:"on_invalid"`
		MaxPromptChars   int    `yaml:"max_prompt_chars"`
		MaxResponseChars int    `yaml:"max_response_chars"`
	} `yaml:"import"`
}

// LoadConfig loads configuration from a YAML file. A missing file yields
// defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err == nil {
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Database.Path == "" {
		config.Database.Path = "./data/labelbench.db"
	}
	if config.Import.OnInvalid == "" {
		config.Import.OnInvalid = "abort"
	}
	if config.Import.OnInvalid != "abort" && config.Import.OnInvalid != "skip" {
		return nil, fmt.Errorf("import.on_invalid must be \"abort\" or \"skip\", got %q", config.Import.OnInvalid)
	}

	return config, nil
}

// ImportOptions translates the config into importer options.
func (c *Config) ImportOptions() dataset.Options {
	opts := dataset.Options{
		MaxPromptChars:   c.Import.MaxPromptChars,
		MaxResponseChars: c.Import.MaxResponseChars,
	}
	if c.Import.OnInvalid == "skip" {
		opts.OnInvalid = dataset.OnInvalidSkip
	}
	return opts
}
