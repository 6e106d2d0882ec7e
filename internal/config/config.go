// Package config loads the configuration file used by the dynamosess command.
package config

import (
	"os"
	"time"

	"github.com/jjeffery/dynamosessions/dynamodbstore"
	"github.com/jjeffery/dynamosessions/sessionstore"
	"github.com/jjeffery/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config describes the session table and how to reach it.
type Config struct {
	Table              string        `yaml:"table"`
	Region             string        `yaml:"region"`
	AWSConfigPath      string        `yaml:"aws_config_path"`
	Endpoint           string        `yaml:"endpoint"`
	Prefix             string        `yaml:"prefix"`
	NoPrefix           bool          `yaml:"no_prefix"`
	ReapInterval       time.Duration `yaml:"reap_interval"`
	ReadCapacityUnits  int64         `yaml:"read_capacity_units"`
	WriteCapacityUnits int64         `yaml:"write_capacity_units"`
	LogLevel           string        `yaml:"log_level"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Table:              dynamodbstore.DefaultTable,
		Region:             dynamodbstore.DefaultRegion,
		Prefix:             sessionstore.DefaultPrefix,
		ReapInterval:       sessionstore.DefaultReapInterval,
		ReadCapacityUnits:  sessionstore.DefaultCapacityUnits,
		WriteCapacityUnits: sessionstore.DefaultCapacityUnits,
		LogLevel:           "info",
	}
}

// Load reads the YAML file at path. Settings missing from the file keep
// their default values. If path is blank the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	errors := errors.With("path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	return cfg, nil
}

// Logger returns a logger writing to stderr at the configured level.
func (cfg *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.With("log_level", cfg.LogLevel).Wrap(err, "invalid log level")
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	return logger, nil
}

// Options returns the DynamoDB session store options for the configuration.
func (cfg *Config) Options(logger logrus.FieldLogger) dynamodbstore.Options {
	return dynamodbstore.Options{
		Options: sessionstore.Options{
			Prefix:             cfg.Prefix,
			NoPrefix:           cfg.NoPrefix,
			ReapInterval:       cfg.ReapInterval,
			ReadCapacityUnits:  cfg.ReadCapacityUnits,
			WriteCapacityUnits: cfg.WriteCapacityUnits,
			Logger:             logger,
		},
		Table:         cfg.Table,
		Region:        cfg.Region,
		AWSConfigPath: cfg.AWSConfigPath,
		Endpoint:      cfg.Endpoint,
	}
}
