// Package config loads the gateway's top-level YAML configuration:
// where policies live, where the HTTP transport listens, how long a
// pending approval survives, and where tracing spans should be
// exported to.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Policy   PolicyConfig   `yaml:"policy"`
	Server   ServerConfig   `yaml:"server"`
	Approval ApprovalConfig `yaml:"approval"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// PolicyConfig locates the policy directory the Store/Watcher read.
type PolicyConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig controls the HTTP transport.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	CORS bool   `yaml:"cors"`
}

// ApprovalConfig controls the approval gate's sweep TTL.
type ApprovalConfig struct {
	TTL Duration `yaml:"ttl"`
}

// Duration is a time.Duration that unmarshals from YAML's natural
// string form ("15m", "30s") since time.Duration has no TextUnmarshaler
// of its own for yaml.v3 to pick up.
type Duration time.Duration

// UnmarshalYAML parses a duration string into d.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders d the same way it was parsed.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// TracingConfig names the tracing service and carries an OTLP endpoint.
// The gateway exports spans to stdout whether or not Endpoint is set; a
// non-empty Endpoint is only logged at startup as unused.
type TracingConfig struct {
	Endpoint    string `yaml:"otlp_endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Default returns a Config usable for local runs and the CLI's mock
// command without any file on disk, with PORT/POLICY_DIR/OTEL_ENDPOINT
// applied on top (see applyEnv).
func Default() Config {
	cfg := Config{
		Policy:   PolicyConfig{Dir: "./policies"},
		Server:   ServerConfig{Addr: ":8080", CORS: false},
		Approval: ApprovalConfig{TTL: Duration(15 * time.Minute)},
		Tracing:  TracingConfig{ServiceName: "aegisgate"},
	}
	applyEnv(&cfg)
	return cfg
}

// Load reads and parses a Config from path, filling in Default()'s
// values for anything the file leaves zero, then re-applying
// PORT/POLICY_DIR/OTEL_ENDPOINT so the environment always has the last
// word over a checked-in YAML file.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Policy.Dir == "" {
		cfg.Policy.Dir = "./policies"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Approval.TTL <= 0 {
		cfg.Approval.TTL = Duration(15 * time.Minute)
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "aegisgate"
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays the gateway's documented environment contract —
// PORT, POLICY_DIR, OTEL_ENDPOINT — onto cfg. Unset variables leave the
// existing value (default or YAML) untouched.
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if dir := os.Getenv("POLICY_DIR"); dir != "" {
		cfg.Policy.Dir = dir
	}
	if endpoint := os.Getenv("OTEL_ENDPOINT"); endpoint != "" {
		cfg.Tracing.Endpoint = endpoint
	}
}
