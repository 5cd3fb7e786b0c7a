// Package config loads the HTTP server's own settings the same way
// qc/qdd/engine.LoadConfig loads the simulator's: viper, layered over
// built-in defaults, overridable by a config file or QPLAY_-prefixed
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config wraps a *viper.Viper so callers keep using the familiar
// GetBool/GetInt/GetString accessors without depending on viper directly.
type Config struct {
	v *viper.Viper
}

// GetBool returns the bool value stored under key.
func (c *Config) GetBool(key string) bool { return c.v.GetBool(key) }

// GetInt returns the int value stored under key.
func (c *Config) GetInt(key string) int { return c.v.GetInt(key) }

// GetString returns the string value stored under key.
func (c *Config) GetString(key string) string { return c.v.GetString(key) }

// Load reads configuration from path (if non-empty), layered over the
// built-in defaults, then environment variables prefixed QPLAY_ (e.g.
// QPLAY_DEBUG, QPLAY_PORT).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("port", 8080)
	v.SetDefault("local_only", false)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: loading %q: %w", path, err)
		}
	}

	return &Config{v: v}, nil
}

// Default returns a Config populated with only the built-in defaults,
// for callers that don't need a config file (e.g. tests).
func Default() *Config {
	c, err := Load("")
	if err != nil {
		// Load("") never touches the filesystem, so this is unreachable.
		panic(err)
	}
	return c
}
