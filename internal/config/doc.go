// Package config provides configuration loading and validation for the
// motion relay service. It handles YAML-based configuration with per-section
// validation and defaults for every parameter.
package config
