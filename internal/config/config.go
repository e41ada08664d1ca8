// Package config loads the service's configuration from a YAML file with
// QUEUEHUB_-prefixed environment variable overrides, using
// gopkg.in/yaml.v3. The result is an explicit, immutable value passed
// into every component's constructor — no package-level settings
// singleton.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackendKind enumerates the storage strategy backing both the message
// backend and the restriction registry.
type BackendKind string

const (
	BackendMemory     BackendKind = "in-memory"
	BackendRelational BackendKind = "relational"
	BackendCache      BackendKind = "cache"
	BackendDocument   BackendKind = "document"
)

// AuthMode enumerates the access-control state machine's modes.
type AuthMode string

const (
	AuthNone       AuthMode = "none"
	AuthHybrid     AuthMode = "hybrid"
	AuthRestricted AuthMode = "restricted"
)

// Config is the service's effective configuration.
type Config struct {
	ListenAddr string `yaml:"listenAddr"`

	Backend struct {
		Kind BackendKind `yaml:"kind"`

		Relational struct {
			DSN string `yaml:"dsn"`
		} `yaml:"relational"`

		Cache struct {
			Endpoints  []string `yaml:"endpoints"`
			Sentinel   bool     `yaml:"sentinel"`
			MasterName string   `yaml:"masterName"`
			Password   string   `yaml:"password"`
			KeyPrefix  string   `yaml:"prefix"`
		} `yaml:"cache"`

		Document struct {
			Endpoints []string `yaml:"endpoints"`
			Database  string   `yaml:"database"`
			Username  string   `yaml:"username"`
			Password  string   `yaml:"password"`
		} `yaml:"document"`
	} `yaml:"backend"`

	Auth struct {
		Mode               AuthMode `yaml:"mode"`
		TokenSecret        string   `yaml:"tokenSecret"`
		TokenDefaultTTLSec int64    `yaml:"tokenDefaultTtlSeconds"`
		AdminToken         string   `yaml:"adminToken"`
	} `yaml:"auth"`
}

const envPrefix = "QUEUEHUB_"

// Load reads path (if it exists) and then applies QUEUEHUB_-prefixed
// environment variable overrides sourced from env (pass nil in
// production to source from os.Environ(); tests can pass a fixed map).
func Load(path string, env map[string]string) (*Config, error) {
	cfg := &Config{ListenAddr: ":8080"}
	cfg.Backend.Kind = BackendMemory
	cfg.Auth.Mode = AuthNone
	cfg.Auth.TokenDefaultTTLSec = 3600

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if env == nil {
		env = environAsMap()
	}
	applyEnvOverrides(cfg, env)

	return cfg, nil
}

func environAsMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}

func applyEnvOverrides(cfg *Config, env map[string]string) {
	get := func(key string) (string, bool) {
		v, ok := env[envPrefix+key]
		return v, ok
	}

	if v, ok := get("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := get("BACKEND_KIND"); ok {
		cfg.Backend.Kind = BackendKind(v)
	}
	if v, ok := get("RELATIONAL_DSN"); ok {
		cfg.Backend.Relational.DSN = v
	}
	if v, ok := get("CACHE_ENDPOINTS"); ok {
		cfg.Backend.Cache.Endpoints = splitCSV(v)
	}
	if v, ok := get("CACHE_SENTINEL"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Backend.Cache.Sentinel = b
		}
	}
	if v, ok := get("CACHE_MASTER_NAME"); ok {
		cfg.Backend.Cache.MasterName = v
	}
	if v, ok := get("CACHE_PASSWORD"); ok {
		cfg.Backend.Cache.Password = v
	}
	if v, ok := get("CACHE_PREFIX"); ok {
		cfg.Backend.Cache.KeyPrefix = v
	}
	if v, ok := get("DOCUMENT_ENDPOINTS"); ok {
		cfg.Backend.Document.Endpoints = splitCSV(v)
	}
	if v, ok := get("DOCUMENT_DATABASE"); ok {
		cfg.Backend.Document.Database = v
	}
	if v, ok := get("DOCUMENT_USERNAME"); ok {
		cfg.Backend.Document.Username = v
	}
	if v, ok := get("DOCUMENT_PASSWORD"); ok {
		cfg.Backend.Document.Password = v
	}
	if v, ok := get("AUTH_MODE"); ok {
		cfg.Auth.Mode = AuthMode(v)
	}
	if v, ok := get("TOKEN_SECRET"); ok {
		cfg.Auth.TokenSecret = v
	}
	if v, ok := get("TOKEN_DEFAULT_TTL_SECONDS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Auth.TokenDefaultTTLSec = n
		}
	}
	if v, ok := get("ADMIN_TOKEN"); ok {
		cfg.Auth.AdminToken = v
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// WithDefaultPort appends ":port" to any endpoint in endpoints that
// doesn't already carry a port, as required for the cache/document
// connectivity fields.
func WithDefaultPort(endpoints []string, port string) []string {
	out := make([]string, len(endpoints))
	for i, e := range endpoints {
		if strings.Contains(e, ":") {
			out[i] = e
			continue
		}
		out[i] = e + ":" + port
	}
	return out
}

// Settings is the effective, non-secret configuration surfaced by the
// introspection endpoint.
type Settings struct {
	BackendKind BackendKind `json:"backendKind"`
	AuthMode    AuthMode    `json:"authenticationMode"`
	ListenAddr  string      `json:"listenAddr"`
}

// ToSettings strips secrets from Config.
func (c *Config) ToSettings() Settings {
	return Settings{
		BackendKind: c.Backend.Kind,
		AuthMode:    c.Auth.Mode,
		ListenAddr:  c.ListenAddr,
	}
}
