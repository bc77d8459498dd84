package cspweaver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds a complete policy configuration. It is long-lived and
// read-mostly: publish it once, share it across requests, and never mutate it
// afterwards. Build and Middleware uphold that contract by copying before
// merging; use Clone to derive variants.
type Config struct {
	// Directives maps directive names to values. A value may be nil
	// (absent), a bool (flag directive), a string (single token), or a
	// slice of tokens.
	Directives map[string]any `yaml:"directives"`

	// IncludeNonceIn lists the directives that receive the per-request
	// nonce token. nil means the default, ["default-src"]; an explicitly
	// empty list disables nonce injection.
	IncludeNonceIn []string `yaml:"includeNonceIn"`

	// ReportOnly selects the Content-Security-Policy-Report-Only header.
	ReportOnly bool `yaml:"reportOnly"`

	// ReportPercentage samples report-only delivery: the header is attached
	// to roughly that percentage of requests. 0 means unset (always
	// attach). Ignored when ReportOnly is false.
	ReportPercentage int `yaml:"reportPercentage"`

	// ExcludeURLPrefixes lists URL path prefixes the middleware skips
	// entirely.
	ExcludeURLPrefixes []string `yaml:"excludeURLPrefixes"`
}

// DefaultConfig returns the baseline configuration: default-src 'self', the
// flag directives present but disabled, everything else absent.
func DefaultConfig() *Config {
	return &Config{
		Directives: map[string]any{
			DefaultSrc:              []string{SourceSelf},
			UpgradeInsecureRequests: false,
			BlockAllMixedContent:    false,
		},
	}
}

// Clone returns a deep copy sharing no directive storage with c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{
		ReportOnly:       c.ReportOnly,
		ReportPercentage: c.ReportPercentage,
	}
	if c.Directives != nil {
		out.Directives = make(map[string]any, len(c.Directives))
		for name, v := range c.Directives {
			if toks := normalizeValue(v); toks != nil {
				out.Directives[name] = toks
			} else {
				out.Directives[name] = nil
			}
		}
	}
	if c.IncludeNonceIn != nil {
		out.IncludeNonceIn = append([]string{}, c.IncludeNonceIn...)
	}
	if c.ExcludeURLPrefixes != nil {
		out.ExcludeURLPrefixes = append([]string{}, c.ExcludeURLPrefixes...)
	}
	return out
}

// Validate checks the configuration for values the builder would silently
// misuse.
func (c *Config) Validate() error {
	if c.ReportPercentage < 0 || c.ReportPercentage > 100 {
		return &ConfigError{
			Field:   "reportPercentage",
			Message: fmt.Sprintf("must be between 0 and 100, got %d", c.ReportPercentage),
		}
	}
	for _, name := range c.IncludeNonceIn {
		if name == "" {
			return &ConfigError{Field: "includeNonceIn", Message: "directive name must not be empty"}
		}
	}
	for _, prefix := range c.ExcludeURLPrefixes {
		if prefix == "" {
			return &ConfigError{Field: "excludeURLPrefixes", Message: "prefix must not be empty"}
		}
	}
	return nil
}

// LoadConfig reads a YAML config file and merges it over DefaultConfig.
// Directive entries in the file overlay the defaults key by key; a null value
// removes a default directive.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}
