// Package config loads the agentrun configuration: defaults, then an
// optional YAML file, then AGENTRUN_* environment overrides.
package config
