package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
env: dev
log_level: debug
udp_addr: "127.0.0.1:5300"
tcp_addr: "127.0.0.1:5300"
version: "test-server"
always_bump_serial: true
zones:
  - name: primary
    type: file
    path: /var/lib/adns/zones.yaml
    writable: true
  - name: archive
    type: bolt
    path: /var/lib/adns/zones.db
    seed: /var/lib/adns/seed.yaml
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:5300", cfg.UDPAddr)
	assert.Equal(t, "test-server", cfg.Version)
	assert.True(t, cfg.AlwaysBumpSerial)
	require.Len(t, cfg.Zones, 2)
	assert.Equal(t, ZoneSource{Name: "primary", Type: "file", Path: "/var/lib/adns/zones.yaml", Writable: true}, cfg.Zones[0])
	assert.Equal(t, "bolt", cfg.Zones[1].Type)
	assert.Equal(t, "/var/lib/adns/seed.yaml", cfg.Zones[1].Seed)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
zones:
  - name: primary
    type: file
    path: /tmp/zones.yaml
`))
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":53", cfg.UDPAddr)
	assert.Equal(t, ":53", cfg.TCPAddr)
	assert.Equal(t, "adns", cfg.Version)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("ADNS_LOG_LEVEL", "warn")
	t.Setenv("ADNS_UDP_ADDR", ":5301")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":5301", cfg.UDPAddr)
	assert.Equal(t, "dev", cfg.Env, "file values survive where env is silent")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no zones", "env: prod\n"},
		{"bad zone type", sampleConfig + `
  - name: bad
    type: sqlite
    path: /tmp/x
`},
		{"bad log level", "log_level: verbose\nzones:\n  - name: a\n    type: file\n    path: /tmp/z\n"},
		{"bad listen addr", "udp_addr: not-an-addr\nzones:\n  - name: a\n    type: file\n    path: /tmp/z\n"},
		{"zone missing path", "zones:\n  - name: a\n    type: file\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidListenAddr(t *testing.T) {
	cases := map[string]bool{
		":53":             true,
		"127.0.0.1:5300":  true,
		"[::1]:53":        true,
		"0.0.0.0:53":      true,
		"localhost:53":    false,
		"127.0.0.1":       false,
		"127.0.0.1:0":     false,
		"127.0.0.1:99999": false,
		"":                false,
	}
	for addr, want := range cases {
		body := "udp_addr: \"" + addr + "\"\nzones:\n  - name: a\n    type: file\n    path: /tmp/z\n"
		_, err := Load(writeConfig(t, body))
		if want {
			assert.NoError(t, err, addr)
		} else {
			assert.Error(t, err, addr)
		}
	}
}
