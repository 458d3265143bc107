package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/votecast/backend/internal/tally"
)

// Environment overrides.
const (
	EnvAdminSecret = "VOTECAST_ADMIN_SECRET"
	EnvPort        = "PORT"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Mock      MockConfig      `yaml:"mock"`
	Units     []UnitConfig    `yaml:"units"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

type AdminConfig struct {
	Secret string `yaml:"secret"`
}

type BroadcastConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
}

type MockConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type UnitConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Eligible   uint64 `yaml:"eligible"`
	CandidateA string `yaml:"candidate_a"`
	CandidateB string `yaml:"candidate_b"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Broadcast: BroadcastConfig{
			SendBuffer:   64,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			PongTimeout:  60 * time.Second,
		},
		Mock: MockConfig{
			Interval: time.Second,
		},
		Units: defaultUnits(),
	}
}

func defaultUnits() []UnitConfig {
	return []UnitConfig{
		{ID: "F.ENG", Name: "F.ENG", Eligible: 123, CandidateA: "Christian Jarouj", CandidateB: "Kamil Hedwen"},
		{ID: "F.BAE", Name: "F.BAE", Eligible: 108, CandidateA: "Elisha Jarouj", CandidateB: "Roy Frangieh"},
		{ID: "F.NAS", Name: "F.NAS", Eligible: 100, CandidateA: "Mathieu Takla", CandidateB: "Hisham El Daas"},
		{ID: "F.AAD", Name: "F.AAD", Eligible: 50, CandidateA: "Joya Tahech", CandidateB: "Charbel Yammine"},
		{ID: "F.HUM", Name: "F.HUM", Eligible: 84, CandidateA: "Jean Paul Matta", CandidateB: "Emilio Bou Tannous"},
		{ID: "F.NHS", Name: "F.NHS", Eligible: 27, CandidateA: "Rossa Maria Fares", CandidateB: "Youssef Aoun"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path yields the defaults. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if secret := os.Getenv(EnvAdminSecret); secret != "" {
		c.Admin.Secret = secret
	}
	if portStr := os.Getenv(EnvPort); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid %s env variable: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate reports every problem that would stop the server from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.Admin.Secret == "" {
		errs = append(errs, fmt.Errorf("admin.secret is required (or set %s)", EnvAdminSecret))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max_connections must not be negative"))
	}
	if c.Broadcast.SendBuffer <= 0 {
		errs = append(errs, errors.New("broadcast.send_buffer must be positive"))
	}
	if len(c.Units) == 0 {
		errs = append(errs, errors.New("at least one unit is required"))
	}
	seen := make(map[string]bool, len(c.Units))
	for i, u := range c.Units {
		switch {
		case u.ID == "":
			errs = append(errs, fmt.Errorf("units[%d]: id is required", i))
		case seen[u.ID]:
			errs = append(errs, fmt.Errorf("units[%d]: duplicate id %q", i, u.ID))
		}
		seen[u.ID] = true
		if u.CandidateA == "" || u.CandidateB == "" {
			errs = append(errs, fmt.Errorf("units[%d]: both candidate labels are required", i))
		}
	}
	return errors.Join(errs...)
}

// TallyUnits converts the configured units into their starting tally state.
// A missing display name falls back to the id.
func (c *Config) TallyUnits() []tally.Unit {
	units := make([]tally.Unit, len(c.Units))
	for i, u := range c.Units {
		name := u.Name
		if name == "" {
			name = u.ID
		}
		units[i] = tally.Unit{
			ID:         u.ID,
			Name:       name,
			Eligible:   u.Eligible,
			CandidateA: u.CandidateA,
			CandidateB: u.CandidateB,
		}
	}
	return units
}
