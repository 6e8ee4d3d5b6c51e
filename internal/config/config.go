package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/engine"
	"github.com/perimetra/perimetra/internal/validation"
)

// Config is the full static configuration of one process. Everything here
// is read once at startup; nothing is reloaded at runtime.
type Config struct {
	IdP    IdPConfig    `yaml:"idp"`
	Local  LocalConfig  `yaml:"local"`
	Policy PolicyConfig `yaml:"policy"`
	Audit  AuditConfig  `yaml:"audit"`
}

// IdPConfig configures the centralized identity issuer.
type IdPConfig struct {
	// Secret signs access tokens. Never shared with the local service.
	Secret string `yaml:"secret"`

	// Algorithm is the HMAC signing algorithm (default HS256).
	Algorithm string `yaml:"algorithm"`

	// Issuer is the iss claim baked into access tokens.
	Issuer string `yaml:"issuer"`

	// TokenTTLMinutes is the access token lifetime.
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`

	Principals []core.Principal `yaml:"principals"`
}

// LocalConfig configures the decentralized session guard.
type LocalConfig struct {
	Secret    string `yaml:"secret"`
	Algorithm string `yaml:"algorithm"`
	Issuer    string `yaml:"issuer"`

	// SessionTTLSeconds is the session token lifetime. Deliberately short
	// so expiry is observable in real time.
	SessionTTLSeconds int `yaml:"session_ttl_seconds"`

	CookieName   string `yaml:"cookie_name"`
	CookieSecure bool   `yaml:"cookie_secure"`

	Principals []core.Principal `yaml:"principals"`
}

// BusinessHours is the allowed window [start, end) in the named zone.
type BusinessHours struct {
	StartHour int    `yaml:"start"`
	EndHour   int    `yaml:"end"`
	Timezone  string `yaml:"timezone"`
}

// PolicyConfig configures the decision engine.
type PolicyConfig struct {
	BusinessHours     BusinessHours `yaml:"business_hours"`
	RegisteredDevices []string      `yaml:"registered_devices"`
	SensitivePrefixes []string      `yaml:"sensitive_prefixes"`
	RiskThreshold     float64       `yaml:"risk_threshold"`
	Rules             []engine.Rule `yaml:"rules"`
}

// AuditConfig selects and configures the audit backend.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// Type selects the backend: "file", "memory" or "noop".
	Type string `yaml:"type"`

	// Config holds backend-specific options (e.g. path for "file").
	Config map[string]any `yaml:",inline"`
}

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IdP.Algorithm == "" {
		c.IdP.Algorithm = "HS256"
	}
	if c.IdP.Issuer == "" {
		c.IdP.Issuer = "perimetra-idp"
	}
	if c.IdP.TokenTTLMinutes == 0 {
		c.IdP.TokenTTLMinutes = 30
	}
	if c.Local.Algorithm == "" {
		c.Local.Algorithm = "HS256"
	}
	if c.Local.Issuer == "" {
		c.Local.Issuer = "local_service"
	}
	if c.Local.SessionTTLSeconds == 0 {
		c.Local.SessionTTLSeconds = 60
	}
	if c.Local.CookieName == "" {
		c.Local.CookieName = "local_session"
	}
	if c.Policy.BusinessHours.StartHour == 0 && c.Policy.BusinessHours.EndHour == 0 {
		c.Policy.BusinessHours.StartHour = 7
		c.Policy.BusinessHours.EndHour = 19
	}
	if c.Policy.RiskThreshold == 0 {
		c.Policy.RiskThreshold = 0.7
	}
	if c.Audit.Type == "" {
		c.Audit.Type = "noop"
	}
}

func (c *Config) Validate() error {
	if c.IdP.Secret == "" {
		return fmt.Errorf("idp.secret is required")
	}
	if c.Local.Secret == "" {
		return fmt.Errorf("local.secret is required")
	}
	if c.IdP.Secret == c.Local.Secret {
		return fmt.Errorf("idp and local must not share a signing secret")
	}
	if c.IdP.TokenTTLMinutes <= 0 {
		return fmt.Errorf("idp.token_ttl_minutes must be positive")
	}
	if c.Local.SessionTTLSeconds <= 0 {
		return fmt.Errorf("local.session_ttl_seconds must be positive")
	}

	bh := c.Policy.BusinessHours
	if bh.StartHour < 0 || bh.StartHour > 23 {
		return fmt.Errorf("policy.business_hours.start must be in [0,23]")
	}
	if bh.EndHour < 1 || bh.EndHour > 24 {
		return fmt.Errorf("policy.business_hours.end must be in [1,24]")
	}
	if bh.StartHour >= bh.EndHour {
		return fmt.Errorf("policy.business_hours.start must be before end")
	}
	if _, err := validation.LoadLocation(bh.Timezone); err != nil {
		return err
	}
	if c.Policy.RiskThreshold <= 0 || c.Policy.RiskThreshold > 1 {
		return fmt.Errorf("policy.risk_threshold must be in (0,1]")
	}
	if _, err := validation.CompileRules(c.Policy.Rules); err != nil {
		return fmt.Errorf("validating policy rules: %w", err)
	}

	if _, err := validation.ValidateRegistry(c.IdP.Principals); err != nil {
		return fmt.Errorf("validating idp principals: %w", err)
	}
	if _, err := validation.ValidateRegistry(c.Local.Principals); err != nil {
		return fmt.Errorf("validating local principals: %w", err)
	}

	switch c.Audit.Type {
	case "file", "memory", "noop":
	default:
		return fmt.Errorf("audit.type must be one of file, memory, noop")
	}

	return nil
}

// BuildPolicy assembles the engine policy: time zone resolved, device set
// built, rule expressions compiled.
func (c *Config) BuildPolicy() (engine.Policy, error) {
	loc, err := validation.LoadLocation(c.Policy.BusinessHours.Timezone)
	if err != nil {
		return engine.Policy{}, err
	}
	rules, err := validation.CompileRules(c.Policy.Rules)
	if err != nil {
		return engine.Policy{}, err
	}

	devices := make(map[string]struct{}, len(c.Policy.RegisteredDevices))
	for _, d := range c.Policy.RegisteredDevices {
		if dev := core.NormalizeDevice(d); dev != "" {
			devices[dev] = struct{}{}
		}
	}

	return engine.Policy{
		StartHour:         c.Policy.BusinessHours.StartHour,
		EndHour:           c.Policy.BusinessHours.EndHour,
		Location:          loc,
		RegisteredDevices: devices,
		SensitivePrefixes: c.Policy.SensitivePrefixes,
		RiskThreshold:     c.Policy.RiskThreshold,
		Rules:             rules,
	}, nil
}

// IdPRegistry returns the validated centralized principal registry.
func (c *Config) IdPRegistry() (core.Registry, error) {
	return validation.ValidateRegistry(c.IdP.Principals)
}

// LocalRegistry returns the validated local principal registry. It is a
// separate set: a principal known to the IdP is unknown here.
func (c *Config) LocalRegistry() (core.Registry, error) {
	return validation.ValidateRegistry(c.Local.Principals)
}

// TokenTTL returns the configured access token lifetime.
func (c *IdPConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// SessionTTL returns the configured session token lifetime.
func (c *LocalConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}
