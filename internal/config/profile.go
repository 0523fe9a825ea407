package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MikeSquared-Agency/chatlog/internal/logparse"
	"gopkg.in/yaml.v3"
)

// Profile is the YAML form of a platform's log conventions. Unset keys keep
// the values from [logparse.DefaultConfig].
type Profile struct {
	KnownModules     []string `yaml:"known_modules"`
	InputMarker      string   `yaml:"input_marker"`
	FallbackResponse string   `yaml:"fallback_response"`
	PrimaryModule    string   `yaml:"primary_module"`
	DefaultModule    string   `yaml:"default_module"`
	Attribution      string   `yaml:"attribution"`
}

// LoadProfile reads the profile at path. An empty path yields the defaults.
func LoadProfile(path string) (logparse.Config, error) {
	if path == "" {
		return logparse.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return logparse.Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadProfileFromReader(f)
	if err != nil {
		return logparse.Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadProfileFromReader decodes a profile from r, merges it over the
// defaults and validates the result.
func LoadProfileFromReader(r io.Reader) (logparse.Config, error) {
	var p Profile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return logparse.Config{}, fmt.Errorf("config: decode yaml: %w", err)
	}

	cfg := p.apply(logparse.DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return logparse.Config{}, fmt.Errorf("config: invalid profile: %w", err)
	}
	return cfg, nil
}

func (p Profile) apply(cfg logparse.Config) logparse.Config {
	if len(p.KnownModules) > 0 {
		cfg.KnownModules = append([]string(nil), p.KnownModules...)
	}
	if p.InputMarker != "" {
		cfg.InputMarker = p.InputMarker
	}
	if p.FallbackResponse != "" {
		cfg.FallbackResponse = p.FallbackResponse
	}
	if p.PrimaryModule != "" {
		cfg.PrimaryModule = p.PrimaryModule
	}
	if p.DefaultModule != "" {
		cfg.DefaultModule = p.DefaultModule
	}
	if p.Attribution != "" {
		cfg.Attribution = logparse.Attribution(p.Attribution)
	}
	return cfg
}

// Location resolves a timezone name; empty means the host's local zone.
func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", name, err)
	}
	return loc, nil
}
