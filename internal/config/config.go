// Package config manages the pfinet daemon's ambient configuration using
// koanf/v2 (YAML file + environment overrides + validated defaults), and
// the per-interface mount arguments via a dedicated argv walker in
// args.go (koanf has no equivalent for argp's repeated-flag-group
// semantics, so that part is hand-rolled, grounded on
// original_source/options.c).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete pfinet daemon configuration.
type Config struct {
	Admin   AdminConfig   `koanf:"admin"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Stack   StackConfig   `koanf:"stack"`
}

// AdminConfig holds the plain-HTTP introspection/control server settings.
type AdminConfig struct {
	// Addr is the HTTP listen address (e.g., ":9101").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// StackConfig holds translator-wide settings that are not tied to any
// single interface: the RPC bootstrap socket, and the owning
// uid/gid used by IsRoot checks (spec.md §9 "masterIsRoot").
type StackConfig struct {
	// BootstrapSocket is the Unix-domain socket path clients connect to
	// in place of a Mach bootstrap port (internal/rpc/transport.Listen).
	BootstrapSocket string `koanf:"bootstrap_socket"`

	// OwnerUID/OwnerGID identify the translator's owning user, used when
	// a caller's credentials are compared against translator.Context.IsRoot.
	OwnerUID uint32 `koanf:"owner_uid"`
	OwnerGID uint32 `koanf:"owner_gid"`

	// DefaultFamily is the address family assumed when a socket create
	// request does not specify one explicitly: "inet" or "inet6".
	DefaultFamily string `koanf:"default_family"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Addr: ":9101",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Stack: StackConfig{
			BootstrapSocket: "/var/run/pfinet.sock",
			DefaultFamily:   "inet",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for pfinet configuration.
// Variables are named PFINET_<section>_<key>, e.g., PFINET_ADMIN_ADDR.
const envPrefix = "PFINET_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (PFINET_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	PFINET_ADMIN_ADDR             -> admin.addr
//	PFINET_METRICS_ADDR           -> metrics.addr
//	PFINET_METRICS_PATH           -> metrics.path
//	PFINET_LOG_LEVEL              -> log.level
//	PFINET_LOG_FORMAT             -> log.format
//	PFINET_STACK_BOOTSTRAP_SOCKET -> stack.bootstrap_socket
//	PFINET_STACK_OWNER_UID        -> stack.owner_uid
//	PFINET_STACK_OWNER_GID        -> stack.owner_gid
//	PFINET_STACK_DEFAULT_FAMILY   -> stack.default_family
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms PFINET_ADMIN_ADDR -> admin.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"admin.addr":             defaults.Admin.Addr,
		"metrics.addr":           defaults.Metrics.Addr,
		"metrics.path":           defaults.Metrics.Path,
		"log.level":              defaults.Log.Level,
		"log.format":             defaults.Log.Format,
		"stack.bootstrap_socket": defaults.Stack.BootstrapSocket,
		"stack.owner_uid":        defaults.Stack.OwnerUID,
		"stack.owner_gid":        defaults.Stack.OwnerGID,
		"stack.default_family":   defaults.Stack.DefaultFamily,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyAdminAddr indicates the admin listen address is empty.
	ErrEmptyAdminAddr = errors.New("admin.addr must not be empty")

	// ErrEmptyBootstrapSocket indicates no bootstrap socket path was set.
	ErrEmptyBootstrapSocket = errors.New("stack.bootstrap_socket must not be empty")

	// ErrInvalidDefaultFamily indicates stack.default_family is neither
	// "inet" nor "inet6".
	ErrInvalidDefaultFamily = errors.New("stack.default_family must be inet or inet6")
)

// Argument-walker errors (args.go).
var (
	// ErrMissingValue indicates -i was given with no following name, or
	// -4/-6 with no following path.
	ErrMissingValue = errors.New("missing value")

	// ErrMulticastNotAllowed indicates an address flag was given a
	// multicast address, which cannot be assigned to an interface.
	ErrMulticastNotAllowed = errors.New("address must not be multicast")

	// ErrUnknownFlag indicates an unrecognized command-line token.
	ErrUnknownFlag = errors.New("unknown flag")
)

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}
	if cfg.Stack.BootstrapSocket == "" {
		return ErrEmptyBootstrapSocket
	}
	switch cfg.Stack.DefaultFamily {
	case "inet", "inet6":
	default:
		return ErrInvalidDefaultFamily
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
