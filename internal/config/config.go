package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		return nil, fmt.Errorf("redis.port must be set when redis.host is set")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Controller.Name == "" {
		cfg.Controller.Name = "hotspot-controller"
	}
	if cfg.Controller.Bind.Host == "" {
		cfg.Controller.Bind.Host = "0.0.0.0"
	}
	if cfg.Controller.Bind.Port == 0 {
		cfg.Controller.Bind.Port = 8080
	}
	if cfg.Controller.Admin.TokenTTLSec == 0 {
		cfg.Controller.Admin.TokenTTLSec = 3600
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "hotspot:"
	}
	if cfg.NAC.Binary == "" {
		cfg.NAC.Binary = "ndsctl"
	}
	if cfg.NAC.TimeoutSec == 0 {
		cfg.NAC.TimeoutSec = 10
	}
	if cfg.Sweep.IntervalSec == 0 {
		cfg.Sweep.IntervalSec = 30
	}
	if cfg.Sweep.ReassertEvery == 0 {
		cfg.Sweep.ReassertEvery = 10
	}
}

// ResolveSecret resolves "env:XXX" to the actual secret value.
func ResolveSecret(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty secret_ref")
	}
	if strings.HasPrefix(ref, "env:") {
		key := strings.TrimPrefix(ref, "env:")
		v := os.Getenv(key)
		if v == "" {
			return "", fmt.Errorf("env %s is empty", key)
		}
		return v, nil
	}
	// future extension: file:/path, vault:...
	return ref, nil
}
