// Package config loads server configuration from a YAML file and
// environment variables, validating the result before anything binds a
// socket.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ZoneSource configures one zone storage backend.
type ZoneSource struct {
	// Name identifies the backend in logs and must be unique.
	Name string `koanf:"name" validate:"required"`

	// Type selects the backend: "file" (YAML zone document) or "bolt"
	// (bbolt database).
	Type string `koanf:"type" validate:"required,oneof=file bolt"`

	// Path is the zone file or database location.
	Path string `koanf:"path" validate:"required"`

	// Writable allows dynamic updates to land in this backend. Bolt
	// backends are always writable; file backends opt in.
	Writable bool `koanf:"writable"`

	// Seed is an optional YAML zone document loaded into an empty bolt
	// database on first open.
	Seed string `koanf:"seed"`
}

// AppConfig holds the full server configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// UDPAddr is the listen address for DNS over UDP.
	UDPAddr string `koanf:"udp_addr" validate:"required,listen_addr"`

	// TCPAddr is the listen address for DNS over TCP (queries, updates,
	// zone transfers).
	TCPAddr string `koanf:"tcp_addr" validate:"required,listen_addr"`

	// Version is the string served for version.bind CH TXT queries.
	// Empty refuses those queries.
	Version string `koanf:"version"`

	// AlwaysBumpSerial bumps a zone's SOA serial for every accepted
	// dynamic update, even ones that change nothing.
	AlwaysBumpSerial bool `koanf:"always_bump_serial"`

	// Zones lists the zone storage backends, merged into one tree.
	Zones []ZoneSource `koanf:"zones" validate:"required,min=1,dive"`
}

// DEFAULT_APP_CONFIG defines the default settings. Zone sources have no
// default; a server with no zones has nothing to serve.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:      "prod",
	LogLevel: "info",
	UDPAddr:  ":53",
	TCPAddr:  ":53",
	Version:  "adns",
}

// validListenAddr accepts "host:port" where the host part may be empty
// (bind all interfaces) or a literal IP, and the port is numeric.
func validListenAddr(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "ADNS_",
// lowercasing keys so ADNS_LOG_LEVEL maps to log_level.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "ADNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "ADNS_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load reads configuration in precedence order: defaults, then the YAML
// file at path (skipped when path is empty), then ADNS_-prefixed
// environment variables. The merged result is validated before return.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
