// Package config loads process configuration from the environment. Every
// knob is an env-tagged struct field under the DONUT_DELIVER_ prefix, with
// command-line flags layered on top by the cmd packages.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables into target,
// honoring its env struct tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
