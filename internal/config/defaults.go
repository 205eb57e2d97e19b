package config

import (
	"github.com/acksell/ddbpersist/dynamodb/ddl"
)

// defaults returns the values loaded before the file and the environment.
// Every settable key has a default so environment variables can be matched to it.
func defaults() map[string]any {
	return map[string]any{
		ddl.ConfigKey: string(ddl.ModeNone),

		"dynamodb.read_capacity":  ddl.DefaultReadCapacity,
		"dynamodb.write_capacity": ddl.DefaultWriteCapacity,
		"dynamodb.on_demand":      false,
		"dynamodb.gsi_projection": "ALL",
		"dynamodb.wait_timeout":   ddl.DefaultWaitTimeout.String(),
		"dynamodb.concurrency":    ddl.DefaultConcurrency,
		"dynamodb.region":         "",
		"dynamodb.endpoint":       "",

		"store.path":      "",
		"store.in_memory": false,

		"schema.paths": []string{},

		"log.mode": "development",
	}
}
