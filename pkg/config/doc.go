// Package config handles configuration management for dot-agent.
// Built-in defaults, the user's config.toml and DOT_AGENT_* environment
// variables are layered with koanf, in that order.
package config
