package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func valid() Config {
	return Config{
		LogFormat:            "fmt",
		PollInterval:         10 * time.Second,
		Timeout:              10 * time.Minute,
		MaxConsecutiveErrors: 5,
		ScrollSize:           1000,
		BatchSize:            500,
	}
}

func TestIsValid(t *testing.T) {
	assert.NoError(t, valid().IsValid())

	for name, mutate := range map[string]func(*Config){
		"log format":             func(c *Config) { c.LogFormat = "xml" },
		"poll interval":          func(c *Config) { c.PollInterval = 0 },
		"timeout":                func(c *Config) { c.Timeout = -time.Second },
		"max consecutive errors": func(c *Config) { c.MaxConsecutiveErrors = 0 },
		"scroll and batch sizes": func(c *Config) { c.BatchSize = 0 },
	} {
		c := valid()
		mutate(&c)
		err := c.IsValid()
		if assert.Error(t, err, name) {
			assert.Contains(t, err.Error(), name)
		}
	}
}
