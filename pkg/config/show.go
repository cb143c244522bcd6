package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c

	if out.Telemetry.OTLPHeaders != "" {
		out.Telemetry.OTLPHeaders = redacted
	}

	if out.Publish.AccessKey != "" {
		out.Publish.AccessKey = redacted
	}

	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	r := c.Redacted()

	out, err := yaml.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return out, nil
}
