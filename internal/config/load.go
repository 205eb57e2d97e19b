package config

import (
	"fmt"
	"strings"

	"github.com/acksell/ddbpersist/dynamodb/ddl"

	"github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DDB_"

// Filename is the configuration file looked for when no path is given.
const Filename = "ddb.yaml"

// Load reads the configuration (highest precedence last):
//
//  1. Built-in defaults
//  2. The YAML file at path, skipped when path is empty
//  3. Environment variables with the DDB_ prefix
//
// Environment variables are matched against the known keys, so underscores inside
// a key survive:
//
//	DDB_DYNAMODB_READ_CAPACITY               -> dynamodb.read_capacity
//	DDB_SPRING_DATA_DYNAMODB_ENTITY2DDL_AUTO -> spring.data.dynamodb.entity2ddl.auto
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	envLookup := buildEnvLookup(k.Keys())
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			if koanfKey, ok := envLookup[key]; ok {
				if koanfKey == "schema.paths" {
					return koanfKey, strings.Split(value, ",")
				}
				return koanfKey, value
			}
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Mode = ddl.Mode(strings.TrimSpace(k.String(ddl.ConfigKey)))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// buildEnvLookup maps the env form of every key, dots replaced by underscores,
// back to the key.
func buildEnvLookup(keys []string) map[string]string {
	lookup := make(map[string]string, len(keys))
	for _, key := range keys {
		lookup[strings.ReplaceAll(key, ".", "_")] = key
	}
	return lookup
}
