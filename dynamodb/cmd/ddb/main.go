// ddb runs the DynamoDB schema lifecycle from the command line.
//
// # Installation
//
//	go install github.com/acksell/ddbpersist/dynamodb/cmd/ddb@latest
//
// # Commands
//
//	ddb reconcile   Apply the configured lifecycle mode to every table
//	ddb validate    Check live tables against the schema files
//	ddb tables      List tables and whether the schema declares them
//
// # Configuration
//
// Settings come from ddb.yaml (found by walking up from the current directory,
// or given with --config) and DDB_ environment variables:
//
//	spring:
//	  data:
//	    dynamodb:
//	      entity2ddl:
//	        auto: create-only
//	dynamodb:
//	  region: eu-west-1
//	  read_capacity: 5
//	store:
//	  path: ./data   # use the local badger store instead of DynamoDB
//
// Table definitions are read from schema_dynamodb.yaml files, discovered in the
// repository unless listed under schema.paths or given with --schema.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	// Remove the subcommand from args so flag parsing works
	os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "reconcile", "apply":
		err = runReconcile(ctx, os.Args[1:])
	case "validate":
		err = runValidate(ctx, os.Args[1:])
	case "tables", "ls":
		err = runTables(ctx, os.Args[1:], os.Stdout)
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		fmt.Printf("ddb version %s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "ddb: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ddb %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ddb - DynamoDB schema lifecycle tools

Usage:
  ddb <command> [flags]

Commands:
  reconcile   Apply the lifecycle mode (spring.data.dynamodb.entity2ddl.auto) to every table
  validate    Check that live tables match the schema files
  tables      List tables and whether the schema declares them

Examples:
  # Create missing tables in a local store:
  DDB_STORE_PATH=./data ddb reconcile --mode create-only

  # Check production tables before a deploy:
  ddb validate --config ./ddb.prod.yaml

Modes:
  none, create-only, drop, create, create-drop, validate

Run 'ddb <command> --help' for more information on a command.`)
}
