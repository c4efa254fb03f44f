package main

import (
	"context"
	"io"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	Broker      string `yaml:"broker"`
	Tenant      string `yaml:"tenant"`
	Debug       bool   `yaml:"debug"`
	BatchSize   int    `yaml:"batchSize"`
	Concurrency int    `yaml:"concurrency"`
}

// LoadConfiguration reads defaults from the environment and merges in the
// optional yaml configuration file on top of them.
func LoadConfiguration(ctx context.Context, configPath string) (*Config, error) {
	cfg := &Config{
		Broker: env.GetVariableOrDefault(ctx, "CONTEXT_BROKER_URL", "http://localhost:8080"),
		Tenant: env.GetVariableOrDefault(ctx, "NGSILD_TENANT", ""),
		Debug:  env.GetVariableOrDefault(ctx, "NGSILD_DEBUG", "false") == "true",
	}

	if configPath == "" {
		return cfg, nil
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return mergeConfiguration(cfg, f)
}

func mergeConfiguration(cfg *Config, data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	fileCfg := Config{}
	if err = yaml.Unmarshal(buf, &fileCfg); err != nil {
		return nil, err
	}

	if fileCfg.Broker != "" {
		cfg.Broker = fileCfg.Broker
	}
	if fileCfg.Tenant != "" {
		cfg.Tenant = fileCfg.Tenant
	}
	if fileCfg.Debug {
		cfg.Debug = true
	}
	if fileCfg.BatchSize > 0 {
		cfg.BatchSize = fileCfg.BatchSize
	}
	if fileCfg.Concurrency > 0 {
		cfg.Concurrency = fileCfg.Concurrency
	}

	return cfg, nil
}
