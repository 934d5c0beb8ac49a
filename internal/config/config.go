package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and locates the roster database
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=postgres sqlite"`
	URL    string `yaml:"url,omitempty" validate:"required_if=Driver postgres"`
	Path   string `yaml:"path,omitempty" validate:"required_if=Driver sqlite"`
}

// RuleLimits configures the scheduling rules checked by the duty server
type RuleLimits struct {
	MaxNightShifts     int `yaml:"maxNightShifts" validate:"min=0,max=31"`
	MaxConsecutiveWork int `yaml:"maxConsecutiveWork" validate:"min=0,max=31"`
	MinOffDays         int `yaml:"minOffDays" validate:"min=0,max=31"`
}

// RecurringRequest is a standing shift request that repeats on an rrule,
// e.g. a nurse who is never on duty on Sundays
type RecurringRequest struct {
	MemberID int    `yaml:"memberId" validate:"required,min=1"`
	RRule    string `yaml:"rrule" validate:"required"`
	Status   string `yaml:"status" validate:"required,oneof=ACCEPTED HOLD DENIED"`
	Message  string `yaml:"message,omitempty"`
}

// Config represents the application configuration
type Config struct {
	ServerURL         string             `yaml:"serverURL" validate:"required,url"`
	ListenAddr        string             `yaml:"listenAddr" validate:"required"`
	AllowedOrigins    []string           `yaml:"allowedOrigins,omitempty"`
	Database          DatabaseConfig     `yaml:"database"`
	BatchDelay        time.Duration      `yaml:"batchDelay,omitempty" validate:"min=0"`
	ThrottleInterval  time.Duration      `yaml:"throttleInterval,omitempty" validate:"min=0"`
	RequestTimeout    time.Duration      `yaml:"requestTimeout,omitempty" validate:"min=0"`
	Rules             RuleLimits         `yaml:"rules"`
	RecurringRequests []RecurringRequest `yaml:"recurringRequests,omitempty" validate:"dive"`
	RosterSheetID     string             `yaml:"rosterSheetID,omitempty"`
	StaffTab          string             `yaml:"staffTab,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration for an environment.
// For example, env="test" will look for "duty_config.test.yaml"
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findEnvFile("duty_config", "yaml", env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for i, req := range cfg.RecurringRequests {
		if _, err := rrule.StrToRRule(req.RRule); err != nil {
			return fmt.Errorf("invalid rrule in recurringRequests[%d]: %w", i, err)
		}
	}

	return nil
}

// findEnvFile looks for <base>.<env>.<ext> (or <base>.<ext> when env is empty) in the
// working directory first, then the home directory
func findEnvFile(base, ext, env string) (string, error) {
	name := base + "." + ext
	if env != "" {
		name = base + "." + env + "." + ext
	}

	candidates := []string{name}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, name))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
