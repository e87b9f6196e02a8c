package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome          = "SIGILGATE_HOME"
	EnvAgentURL      = "SIGILGATE_AGENT_URL"
	EnvRequiredChain = "SIGILGATE_REQUIRED_CHAIN"
	EnvOutputFormat  = "SIGILGATE_OUTPUT_FORMAT"
	EnvVerbose       = "SIGILGATE_VERBOSE"
	EnvLogLevel      = "SIGILGATE_LOG_LEVEL"
	EnvAuthStore     = "SIGILGATE_AUTH_STORE"
	EnvNoColor       = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	// A single agent URL replaces the endpoint list.
	if v := strings.TrimSpace(os.Getenv(EnvAgentURL)); v != "" {
		cfg.Agent.Endpoints = []EndpointConfig{{Name: "env", URL: v}}
	}

	if v := os.Getenv(EnvRequiredChain); v != "" {
		if id, err := strconv.ParseUint(strings.TrimSpace(v), 0, 64); err == nil && id > 0 {
			cfg.RequiredChainID = id
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvAuthStore); v != "" {
		cfg.Auth.Store = strings.ToLower(strings.TrimSpace(v))
	}

	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
