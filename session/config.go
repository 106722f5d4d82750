// Package session wires together the ambient concerns the CLI needs
// around the fit/dem/atmos/veengine packages: YAML configuration,
// structured logging, and Prometheus metrics for batch runs, mirroring
// the teacher's own decode/file.go "open, configure, process" shape.
package session

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk analysis configuration of spec.md §6: rider
// and bike mass, drivetrain efficiency, optional DEM nodata override,
// and logging verbosity.
type Config struct {
	SystemMass          float64  `yaml:"system_mass"`
	Eta                 float64  `yaml:"eta"`
	AirSpeedCalibration float64  `yaml:"air_speed_calibration"`
	NodataOverride      *float64 `yaml:"nodata_override,omitempty"`
	LogLevel            string   `yaml:"log_level"`
}

// ErrInvalidMass is returned when the configured system mass is not
// physically usable by the VE engine.
var ErrInvalidMass = errors.New("session: system_mass must be positive")

// DefaultConfig returns the baseline values used when no config file
// is supplied.
func DefaultConfig() Config {
	return Config{
		SystemMass:          85.0,
		Eta:                 0.97,
		AirSpeedCalibration: 1.0,
		LogLevel:            "info",
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.SystemMass <= 0 {
		return Config{}, ErrInvalidMass
	}
	return cfg, nil
}
