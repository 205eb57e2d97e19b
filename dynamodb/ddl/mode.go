// Package ddl keeps DynamoDB tables in line with the registered entity schemas.
//
// A Manager runs one lifecycle Mode for every registered entity, usually once at
// application startup:
//
//	reg := schema.NewRegistry()
//	reg.MustRegister(User{}, usersTable)
//
//	mgr := ddl.New(client, reg, ddl.ModeCreateOnly, ddl.WithLogger(logger))
//	if err := mgr.Reconcile(ctx); err != nil {
//	    return err
//	}
package ddl

import (
	"fmt"
	"strings"
)

// ConfigKey is the configuration key the lifecycle mode is read from.
const ConfigKey = "spring.data.dynamodb.entity2ddl.auto"

// Mode selects what a Manager does to the table of each entity.
type Mode string

const (
	// ModeNone leaves tables alone.
	ModeNone Mode = "none"
	// ModeCreateOnly creates missing tables and fails on existing ones.
	ModeCreateOnly Mode = "create-only"
	// ModeDrop deletes tables.
	ModeDrop Mode = "drop"
	// ModeCreate drops and recreates tables, losing all data.
	ModeCreate Mode = "create"
	// ModeCreateDrop is ModeCreate at startup, and drops the tables again on Teardown.
	ModeCreateDrop Mode = "create-drop"
	// ModeValidate checks that existing tables match their definitions.
	ModeValidate Mode = "validate"
)

type step string

const (
	stepCreate   step = "create"
	stepDrop     step = "drop"
	stepValidate step = "validate"
)

// plans lists the steps of each mode, run in order.
var plans = map[Mode][]step{
	ModeNone:       nil,
	ModeCreateOnly: {stepCreate},
	ModeDrop:       {stepDrop},
	ModeCreate:     {stepDrop, stepCreate},
	ModeCreateDrop: {stepDrop, stepCreate},
	ModeValidate:   {stepValidate},
}

// Modes returns every valid mode.
func Modes() []Mode {
	return []Mode{ModeNone, ModeCreateOnly, ModeDrop, ModeCreate, ModeCreateDrop, ModeValidate}
}

// ParseMode parses a configured mode. Only the exact mode names are accepted,
// surrounding whitespace aside.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.TrimSpace(s))
	if _, ok := plans[m]; !ok {
		return "", &ConfigurationError{Key: ConfigKey, Value: s}
	}
	return m, nil
}

func (m Mode) Valid() bool {
	_, ok := plans[m]
	return ok
}

func (m Mode) String() string {
	return string(m)
}

// ConfigurationError is returned for a mode value that is not one of Modes.
type ConfigurationError struct {
	Key   string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid value %q for %s, expected one of %v", e.Value, e.Key, Modes())
}
