package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/acksell/ddbpersist/dynamodb/ddbstore"
	"github.com/acksell/ddbpersist/dynamodb/ddl"
	"github.com/acksell/ddbpersist/dynamodb/schema"
	"github.com/acksell/ddbpersist/dynamodb/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const usersSchema = `
tables:
  - name: users
    partitionKey: {name: id, kind: S}
    entities:
      - type: User
`

const ordersSchema = `
tables:
  - name: orders
    partitionKey: {name: pk, kind: S}
    sortKey: {name: sk, kind: S}
`

func writeSchema(t *testing.T, dir, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, schema.Filename)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	a := writeSchema(t, filepath.Join(dir, "a"), usersSchema)
	b := writeSchema(t, filepath.Join(dir, "b"), ordersSchema)

	reg, err := loadRegistry([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "orders"}, reg.Entities())

	_, err = loadRegistry([]string{filepath.Join(dir, "missing.yaml")})
	require.Error(t, err)
}

func TestDiscoverWithWalk(t *testing.T) {
	dir := t.TempDir()
	want := writeSchema(t, filepath.Join(dir, "service", "entities"), usersSchema)
	writeSchema(t, filepath.Join(dir, "vendor", "lib"), ordersSchema)
	writeSchema(t, filepath.Join(dir, "testdata"), ordersSchema)

	files, err := discoverWithWalk(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{want}, files)
}

func TestPrintTables(t *testing.T) {
	ctx := context.Background()
	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true}, table.TableDefinition{
		Name: "legacy",
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: "id", Kind: table.KeyKindS},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s, err := schema.Parse([]byte(usersSchema))
	require.NoError(t, err)
	reg, err := s.Registry()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printTables(ctx, store, reg, &out))
	assert.Equal(t, "TABLE   LIVE  DECLARED\nlegacy  yes   no\nusers   no    yes\n", out.String())

	require.NoError(t, ddl.New(store, reg, ddl.ModeCreateOnly).Reconcile(ctx))
	out.Reset()
	require.NoError(t, printTables(ctx, store, reg, &out))
	assert.Contains(t, out.String(), "users   yes   yes")
}

// syncCountingCore counts Sync calls on an otherwise silent core.
type syncCountingCore struct {
	zapcore.Core
	syncs int
}

func (c *syncCountingCore) Sync() error {
	c.syncs++
	return nil
}

func TestOpenSyncsLoggerOnError(t *testing.T) {
	core := &syncCountingCore{Core: zapcore.NewNopCore()}
	orig := newLogger
	newLogger = func(string) (*zap.Logger, error) { return zap.New(core), nil }
	t.Cleanup(func() { newLogger = orig })

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ddb.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  mode: production\n"), 0o600))

	flags := commonFlags{config: cfgPath, schema: filepath.Join(dir, "missing", schema.Filename)}
	e, err := flags.open(context.Background())
	require.Error(t, err)
	assert.Nil(t, e)
	assert.Equal(t, 1, core.syncs)
}
