package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
	"github.com/acksell/ddbpersist/dynamodb/ddl"
	"github.com/acksell/ddbpersist/dynamodb/schema"
	"github.com/acksell/ddbpersist/internal/config"
	"github.com/acksell/ddbpersist/internal/logging"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// env is what every command needs: settings, a logger, the schema and a backend.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *schema.Registry
	admin    ddbiface.TableAdmin
	close    func() error
}

type commonFlags struct {
	config string
	schema string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "path to the config file (default: nearest ddb.yaml)")
	fs.StringVar(&c.schema, "schema", "", "comma separated schema files (default: schema.paths, or discovered)")
}

// newLogger builds the logger of a command.
var newLogger = logging.New

func (c *commonFlags) open(ctx context.Context) (_ *env, err error) {
	cfg, err := loadConfig(c.config)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = logger.Sync()
		}
	}()
	paths := cfg.Schema.Paths
	if c.schema != "" {
		paths = strings.Split(c.schema, ",")
	}
	reg, err := loadRegistry(paths)
	if err != nil {
		return nil, err
	}
	admin, closeFn, err := openAdmin(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, registry: reg, admin: admin, close: closeFn}, nil
}

func (e *env) Close() error {
	_ = e.logger.Sync()
	return e.close()
}

func (e *env) manager(mode ddl.Mode) *ddl.Manager {
	return ddl.New(e.admin, e.registry, mode, e.cfg.DDLOptions(e.logger)...)
}

func runReconcile(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	mode := fs.String("mode", "", "lifecycle mode, overrides "+ddl.ConfigKey)
	teardown := fs.Bool("teardown", false, "drop the tables again after reconciling (create-drop only)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), `ddb reconcile - Apply the lifecycle mode to every table

Usage:
  ddb reconcile [flags]

Flags:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	m := e.cfg.Mode
	if *mode != "" {
		if m, err = ddl.ParseMode(*mode); err != nil {
			return err
		}
	}
	mgr := e.manager(m)
	if err := mgr.Reconcile(ctx); err != nil {
		return err
	}
	if *teardown {
		return mgr.Teardown(ctx)
	}
	return nil
}

func runValidate(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	if err := e.manager(ddl.ModeValidate).Reconcile(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%d tables match the schema\n", len(e.registry.Tables()))
	return nil
}

func runTables(ctx context.Context, args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("tables", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	return printTables(ctx, e.admin, e.registry, out)
}

// printTables lists live tables and declared tables side by side.
func printTables(ctx context.Context, admin ddbiface.TableAdmin, reg *schema.Registry, out io.Writer) error {
	live, err := listTables(ctx, admin)
	if err != nil {
		return err
	}
	declared := make(map[string]bool)
	for _, def := range reg.Tables() {
		declared[def.Name] = true
	}

	names := slices.Clone(live)
	for name := range declared {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tLIVE\tDECLARED")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, yesNo(slices.Contains(live, name)), yesNo(declared[name]))
	}
	return w.Flush()
}

func listTables(ctx context.Context, admin ddbiface.TableAdmin) ([]string, error) {
	var names []string
	in := &dynamodb.ListTablesInput{}
	for {
		res, err := admin.ListTables(ctx, in)
		if err != nil {
			return nil, ddbiface.NewStorageError("ListTables", err)
		}
		names = append(names, res.TableNames...)
		if res.LastEvaluatedTableName == nil {
			return names, nil
		}
		in.ExclusiveStartTableName = res.LastEvaluatedTableName
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
