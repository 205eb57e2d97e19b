package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/acksell/ddbpersist/dynamodb/schema"
	"github.com/acksell/ddbpersist/internal/config"
)

// loadConfig loads path, or the nearest ddb.yaml when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = findConfigFile()
	}
	return config.Load(path)
}

// findConfigFile searches for ddb.yaml walking up from current directory.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, config.Filename)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}

// loadRegistry reads the schema files into one registry. Without paths the
// repository is searched for schema files.
func loadRegistry(paths []string) (*schema.Registry, error) {
	if len(paths) == 0 {
		found, err := DiscoverSchemas()
		if err != nil {
			return nil, fmt.Errorf("discover schemas: %w", err)
		}
		paths = found
	}
	if len(paths) == 0 {
		return nil, errors.New("no schema files found, pass --schema or set schema.paths")
	}

	var merged schema.Schema
	for _, p := range paths {
		s, err := schema.Load(p)
		if err != nil {
			return nil, err
		}
		merged.Tables = append(merged.Tables, s.Tables...)
	}
	return merged.Registry()
}
