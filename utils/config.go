package utils

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the YAML configuration supplied at startup.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`

	Storage struct {
		Root string `yaml:"root"`
	} `yaml:"storage"`

	Detector struct {
		URL            string `yaml:"url"`
		ModelVersion   string `yaml:"model_version"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxRetries     int    `yaml:"max_retries"`
		BackoffSeconds int    `yaml:"backoff_seconds"`
		Workers        int    `yaml:"workers"`
	} `yaml:"detector"`

	Auth struct {
		Secret     string `yaml:"secret"`
		TokenHours int    `yaml:"token_hours"`
	} `yaml:"auth"`
}

// NewConfig reads and validates the YAML configuration file.
func NewConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(&config); err != nil {
		return nil, err
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "sqlite"
	}
	if config.Database.DSN == "" {
		config.Database.DSN = "posescope.sqlite"
	}
	if config.Storage.Root == "" {
		config.Storage.Root = "media"
	}
	if config.Detector.URL == "" && os.Getenv("DETECTOR_URL") != "" {
		config.Detector.URL = os.Getenv("DETECTOR_URL")
	}
	if config.Auth.Secret == "" {
		config.Auth.Secret = os.Getenv("API_SECRET")
	}
	if config.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret missing: set auth.secret or API_SECRET")
	}
	if config.Auth.TokenHours <= 0 {
		config.Auth.TokenHours = 12
	}
	return config, nil
}

// ValidateConfigPath makes sure the path points to a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a normal file", path)
	}
	return nil
}

// ParseFlags returns the config path and debug mode from the command line.
func ParseFlags() (string, bool, error) {
	var configPath string
	var debugMode bool

	flag.StringVar(&configPath, "config", "./config.yml", "path to config file")
	flag.BoolVar(&debugMode, "debug", false, "enable debug mode")
	flag.Parse()

	if err := ValidateConfigPath(configPath); err != nil {
		return "", false, err
	}
	return configPath, debugMode, nil
}
