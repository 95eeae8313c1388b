package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadServerConfig_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
server:
  host:
    min-port: 20000
    max-port: 20010
`)
	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(20000), cfg.Host.MinPort)
	assert.Equal(t, uint16(20010), cfg.Host.MaxPort)
	assert.Equal(t, uint16(defaultControlPort), cfg.Host.ControlPort)
	assert.Equal(t, defaultTunnelsAddr, cfg.Host.TunnelsAddr)
	assert.False(t, cfg.Auth.RequireID)
}

func TestLoadServerConfig_FullDocument(t *testing.T) {
	path := writeConfig(t, `
server:
  host:
    min-port: 20000
    max-port: 20010
    control-port: 7000
    tunnels-addr: 127.0.0.1
  auth:
    secret: shh
    require-id: true
    allow-static-port:
      - ada@example.com
  security:
    ip-blacklist:
      - 10.0.0.0/8
`)
	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "shh", cfg.Auth.Secret)
	assert.True(t, cfg.Auth.RequireID)
	assert.True(t, cfg.CanUseStaticPort("ada@example.com"))
	assert.False(t, cfg.CanUseStaticPort("eve@example.com"))
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Security.IPBlacklist)
}

func TestLoadServerConfig_MinPortAboveMaxPortRejected(t *testing.T) {
	path := writeConfig(t, `
server:
  host:
    min-port: 30000
    max-port: 10000
`)
	_, err := LoadServerConfig(path)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadServerConfig_BadCIDRRejected(t *testing.T) {
	path := writeConfig(t, `
server:
  host:
    min-port: 1000
    max-port: 2000
  security:
    ip-blacklist:
      - not-a-cidr
`)
	_, err := LoadServerConfig(path)
	require.Error(t, err)
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}
