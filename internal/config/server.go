// Package config loads the server and compose YAML documents described in
// the external-interfaces section: viper for the server config (defaults,
// env overrides, validation), plain gopkg.in/yaml.v3 for the flatter
// compose document. The credentials file is handled by package identity.
package config

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
)

// HostConfig is the server's port-range and bind-address settings.
type HostConfig struct {
	MinPort     uint16 `mapstructure:"min-port"`
	MaxPort     uint16 `mapstructure:"max-port"`
	ControlPort uint16 `mapstructure:"control-port"`
	TunnelsAddr string `mapstructure:"tunnels-addr"`
}

// AuthConfig is the server's shared-secret and identity-requirement settings.
type AuthConfig struct {
	Secret          string   `mapstructure:"secret"`
	RequireID       bool     `mapstructure:"require-id"`
	AllowStaticPort []string `mapstructure:"allow-static-port"`
}

// SecurityConfig holds the (optional) static IP blacklist, see SPEC_FULL.md
// Open Question (b).
type SecurityConfig struct {
	IPBlacklist []string `mapstructure:"ip-blacklist"`
}

// ServerConfig is the decoded `server:` document.
type ServerConfig struct {
	Host     HostConfig     `mapstructure:"host"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
}

type serverDocument struct {
	Server ServerConfig `mapstructure:"server"`
}

const (
	defaultMinPort     = 1024
	defaultMaxPort     = 65535
	defaultControlPort = 7835
	defaultTunnelsAddr = "0.0.0.0"
)

// LoadServerConfig reads and validates the server config file at path.
func LoadServerConfig(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TUNNELED")
	v.AutomaticEnv()

	v.SetDefault("server.host.min-port", defaultMinPort)
	v.SetDefault("server.host.max-port", defaultMaxPort)
	v.SetDefault("server.host.control-port", defaultControlPort)
	v.SetDefault("server.host.tunnels-addr", defaultTunnelsAddr)
	v.SetDefault("server.auth.require-id", false)

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("reading server config %q", path), Err: err}
	}

	var doc serverDocument
	if err := v.Unmarshal(&doc); err != nil {
		return nil, &ConfigError{Msg: "decoding server config", Err: err}
	}

	cfg := doc.Server
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the server core relies on: a non-empty,
// correctly ordered port range and well-formed blacklist CIDRs.
func (c *ServerConfig) Validate() error {
	if c.Host.MinPort == 0 || c.Host.MaxPort == 0 {
		return &ConfigError{Msg: "server.host.min-port and max-port must both be set"}
	}
	if c.Host.MinPort > c.Host.MaxPort {
		return &ConfigError{Msg: fmt.Sprintf("server.host.min-port (%d) must not exceed max-port (%d)", c.Host.MinPort, c.Host.MaxPort)}
	}
	if c.Host.ControlPort == 0 {
		return &ConfigError{Msg: "server.host.control-port must be nonzero"}
	}
	for _, cidr := range c.Security.IPBlacklist {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return &ConfigError{Msg: fmt.Sprintf("server.security.ip-blacklist entry %q is not a valid CIDR", cidr), Err: err}
		}
	}
	return nil
}

// CanUseStaticPort reports whether email appears in the static-port
// allowlist. An empty list allows nobody.
func (c *ServerConfig) CanUseStaticPort(email string) bool {
	for _, allowed := range c.Auth.AllowStaticPort {
		if allowed == email {
			return true
		}
	}
	return false
}
