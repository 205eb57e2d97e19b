package config

import (
	"errors"
	"fmt"

	"github.com/acksell/ddbpersist/dynamodb/ddl"
)

// Validate checks all values and returns the errors joined. An unknown lifecycle
// mode is a *ddl.ConfigurationError.
func (c *Config) Validate() error {
	var modeErr error
	if _, err := ddl.ParseMode(string(c.Mode)); err != nil {
		modeErr = err
	}
	return errors.Join(
		modeErr,
		c.DynamoDB.validate(),
		c.Store.validate(),
		c.Log.validate(),
	)
}

func (d *DynamoDBConfig) validate() error {
	var errs []error

	if !d.OnDemand {
		if d.ReadCapacity < 1 {
			errs = append(errs, fmt.Errorf("dynamodb.read_capacity must be >= 1, got %d", d.ReadCapacity))
		}
		if d.WriteCapacity < 1 {
			errs = append(errs, fmt.Errorf("dynamodb.write_capacity must be >= 1, got %d", d.WriteCapacity))
		}
	}
	switch d.GSIProjection {
	case "ALL", "KEYS_ONLY", "INCLUDE":
	default:
		errs = append(errs, fmt.Errorf("dynamodb.gsi_projection must be one of: ALL, KEYS_ONLY, INCLUDE; got %q", d.GSIProjection))
	}
	if d.WaitTimeout <= 0 {
		errs = append(errs, errors.New("dynamodb.wait_timeout must be positive"))
	}
	if d.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("dynamodb.concurrency must be >= 1, got %d", d.Concurrency))
	}

	return errors.Join(errs...)
}

func (s *StoreConfig) validate() error {
	if s.InMemory && s.Path != "" {
		return errors.New("store.path and store.in_memory are mutually exclusive")
	}
	return nil
}

func (l *LogConfig) validate() error {
	switch l.Mode {
	case "development", "dev", "production", "prod":
		return nil
	}
	return fmt.Errorf("log.mode must be one of: development, production; got %q", l.Mode)
}
