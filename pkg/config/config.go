// Package config holds the settings of the program hosting service. Values
// come from defaults, an optional YAML file and the environment, in that
// order; command line flags are applied last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/cfpl/pkg/runner"
)

// Config is the hosting service configuration.
type Config struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	GRPCPort    int           `yaml:"grpcPort"`
	Project     string        `yaml:"project"`
	Location    string        `yaml:"location"`
	ProgramsDir string        `yaml:"programsDir"`
	RunTimeout  time.Duration `yaml:"runTimeout"`
	MaxSteps    int           `yaml:"maxSteps"`
	MaxOutput   int           `yaml:"maxOutput"`
	RequestLog  bool          `yaml:"requestLog"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:       "0.0.0.0",
		Port:       8787,
		GRPCPort:   8788,
		Project:    "my-project",
		Location:   "us-central1",
		RunTimeout: 30 * time.Second,
		MaxOutput:  1 << 20,
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// FromEnv overlays HOST, PORT, GRPC_PORT, PROJECT, LOCATION, PROGRAMS_DIR,
// RUN_TIMEOUT, MAX_STEPS and MAX_OUTPUT onto cfg.
func FromEnv(cfg Config) (Config, error) {
	setString(&cfg.Host, "HOST")
	setString(&cfg.Project, "PROJECT")
	setString(&cfg.Location, "LOCATION")
	setString(&cfg.ProgramsDir, "PROGRAMS_DIR")

	for key, dst := range map[string]*int{
		"PORT":       &cfg.Port,
		"GRPC_PORT":  &cfg.GRPCPort,
		"MAX_STEPS":  &cfg.MaxSteps,
		"MAX_OUTPUT": &cfg.MaxOutput,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}

	if v := os.Getenv("RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid RUN_TIMEOUT %q: %w", v, err)
		}
		cfg.RunTimeout = d
	}

	return cfg, cfg.Validate()
}

// Validate reports settings that cannot be served.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", c.GRPCPort)
	}
	if c.Port == c.GRPCPort {
		return fmt.Errorf("port and grpc port must differ (both %d)", c.Port)
	}
	if c.Project == "" || c.Location == "" {
		return errors.New("project and location are required")
	}
	if c.RunTimeout < 0 || c.MaxSteps < 0 || c.MaxOutput < 0 {
		return errors.New("run limits must not be negative")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddr is the gRPC listen address.
func (c Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// RunnerOptions converts the run limits for the runner.
func (c Config) RunnerOptions() runner.Options {
	return runner.Options{
		Timeout:   c.RunTimeout,
		MaxSteps:  c.MaxSteps,
		MaxOutput: c.MaxOutput,
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
