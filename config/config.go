// Package config loads process configuration from environment variables.
// A missing required credential is a fatal startup error; there is no
// partial-degraded mode.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOpenAIModel       = "OPENAI_MODEL"
	EnvSalienceThreshold = "SALIENCE_THRESHOLD"
	EnvNodeTimeout       = "NODE_TIMEOUT"
)

// DefaultSalienceThreshold gates memory writes when the variable is unset.
const DefaultSalienceThreshold = 0.6

// Config holds process-level settings supplied via the environment.
type Config struct {
	// OpenAIAPIKey authenticates the LLM collaborator. Required.
	OpenAIAPIKey string

	// OpenAIModel selects the chat model. Empty means the client default.
	OpenAIModel string

	// SalienceThreshold is the minimum combined salience score for a
	// memory write without an explicit trigger.
	SalienceThreshold float64

	// NodeTimeout bounds each node's execution. Zero disables the bound.
	NodeTimeout time.Duration
}

// FromEnv reads configuration from the environment. It fails with a
// descriptive error when the API credential is absent.
func FromEnv() (*Config, error) {
	key := os.Getenv(EnvOpenAIAPIKey)
	if key == "" {
		return nil, fmt.Errorf("%s is not set: export your OpenAI API key before starting", EnvOpenAIAPIKey)
	}

	cfg := &Config{
		OpenAIAPIKey:      key,
		OpenAIModel:       os.Getenv(EnvOpenAIModel),
		SalienceThreshold: DefaultSalienceThreshold,
	}

	if raw := os.Getenv(EnvSalienceThreshold); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvSalienceThreshold, raw, err)
		}
		if threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("invalid %s %v: must be in [0, 1]", EnvSalienceThreshold, threshold)
		}
		cfg.SalienceThreshold = threshold
	}

	if raw := os.Getenv(EnvNodeTimeout); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvNodeTimeout, raw, err)
		}
		cfg.NodeTimeout = timeout
	}

	return cfg, nil
}
