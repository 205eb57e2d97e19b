// Package config loads the settings of the ddb tool and of applications embedding
// the persistence layer. Values are layered: defaults, then an optional YAML file,
// then DDB_ environment variables.
package config

import (
	"time"

	"github.com/acksell/ddbpersist/dynamodb/ddl"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

type Config struct {
	// Mode is read from ddl.ConfigKey.
	Mode     ddl.Mode       `koanf:"-"`
	DynamoDB DynamoDBConfig `koanf:"dynamodb"`
	Store    StoreConfig    `koanf:"store"`
	Schema   SchemaConfig   `koanf:"schema"`
	Log      LogConfig      `koanf:"log"`
}

// DynamoDBConfig holds the table defaults and the connection to the service.
type DynamoDBConfig struct {
	ReadCapacity  int64         `koanf:"read_capacity"`
	WriteCapacity int64         `koanf:"write_capacity"`
	OnDemand      bool          `koanf:"on_demand"`
	GSIProjection string        `koanf:"gsi_projection"`
	WaitTimeout   time.Duration `koanf:"wait_timeout"`
	Concurrency   int           `koanf:"concurrency"`
	Region        string        `koanf:"region"`
	Endpoint      string        `koanf:"endpoint"`
}

// StoreConfig selects the local badger store instead of DynamoDB.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// Local reports whether the local store is configured.
func (s StoreConfig) Local() bool {
	return s.InMemory || s.Path != ""
}

type SchemaConfig struct {
	// Paths are schema files. When empty the tool discovers them.
	Paths []string `koanf:"paths"`
}

type LogConfig struct {
	Mode string `koanf:"mode"`
}

// DDLOptions turns the table defaults into lifecycle manager options.
func (c *Config) DDLOptions(logger *zap.Logger) []ddl.Option {
	opts := []ddl.Option{
		ddl.WithGSIProjection(types.ProjectionType(c.DynamoDB.GSIProjection)),
		ddl.WithWaitTimeout(c.DynamoDB.WaitTimeout),
		ddl.WithConcurrency(c.DynamoDB.Concurrency),
		ddl.WithLogger(logger),
	}
	if c.DynamoDB.OnDemand {
		return append(opts, ddl.WithOnDemand())
	}
	return append(opts, ddl.WithThroughput(c.DynamoDB.ReadCapacity, c.DynamoDB.WriteCapacity))
}
