package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied to a compose Service entry that omits the field.
const (
	DefaultComposeHost        = "localhost"
	DefaultComposeServer      = "strawberryfoundations.org"
	DefaultComposeControlPort = 7835
)

// Service is one entry of a compose file's service list.
type Service struct {
	Name        string  `yaml:"name"`
	Port        int     `yaml:"port"`
	Host        string  `yaml:"host,omitempty"`
	Server      string  `yaml:"server,omitempty"`
	Secret      string  `yaml:"secret,omitempty"`
	StaticPort  *uint16 `yaml:"static-port,omitempty"`
	ControlPort int     `yaml:"control-port,omitempty"`
	UseAuth     bool    `yaml:"use-auth,omitempty"`
}

// ComposeConfig is the decoded `{services: [...]}` document.
type ComposeConfig struct {
	Services []Service `yaml:"services"`
}

// LoadComposeConfig reads, decodes, validates and defaults a compose file.
func LoadComposeConfig(path string) (*ComposeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("reading compose file %q", path), Err: err}
	}

	var cfg ComposeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Msg: "decoding compose file", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i := range cfg.Services {
		cfg.Services[i].applyDefaults()
	}
	return &cfg, nil
}

// Validate checks that every service is nameable and requests a real port.
func (c *ComposeConfig) Validate() error {
	if len(c.Services) == 0 {
		return &ConfigError{Msg: "compose file defines no services"}
	}
	seen := make(map[string]bool, len(c.Services))
	for i, s := range c.Services {
		if s.Name == "" {
			return &ConfigError{Msg: fmt.Sprintf("service #%d: name is required", i)}
		}
		if seen[s.Name] {
			return &ConfigError{Msg: fmt.Sprintf("service %q: duplicate name", s.Name)}
		}
		seen[s.Name] = true
		if s.Port <= 0 || s.Port > 65535 {
			return &ConfigError{Msg: fmt.Sprintf("service %q: port must be in 1-65535", s.Name)}
		}
	}
	return nil
}

func (s *Service) applyDefaults() {
	if s.Host == "" {
		s.Host = DefaultComposeHost
	}
	if s.Server == "" {
		s.Server = DefaultComposeServer
	}
	if s.ControlPort == 0 {
		s.ControlPort = DefaultComposeControlPort
	}
}
