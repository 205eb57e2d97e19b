package ddl

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
	"github.com/acksell/ddbpersist/dynamodb/schema"
	"github.com/acksell/ddbpersist/dynamodb/table"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/acksell/ddbpersist/dynamodb/ddl"

// Manager applies a lifecycle Mode to the tables of the entities of a schema.Provider.
// Table definitions are read from the provider on every call, never cached.
type Manager struct {
	admin    ddbiface.TableAdmin
	provider schema.Provider
	mode     Mode
	opts     options
	tracer   trace.Tracer
}

func New(admin ddbiface.TableAdmin, provider schema.Provider, mode Mode, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		admin:    admin,
		provider: provider,
		mode:     mode,
		opts:     o,
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
	}
}

func (m *Manager) Mode() Mode {
	return m.mode
}

// Execute runs the steps of mode against the table of entity.
func (m *Manager) Execute(ctx context.Context, mode Mode, entity string) error {
	steps, ok := plans[mode]
	if !ok {
		return &ConfigurationError{Key: ConfigKey, Value: string(mode)}
	}
	def, err := m.provider.Describe(entity)
	if err != nil {
		return fmt.Errorf("describe %s: %w", entity, err)
	}
	return m.run(ctx, mode, steps, entity, def)
}

// Reconcile runs the manager's mode for every registered entity. Entities that share
// a table are handled once. All entities are processed, failures are joined.
func (m *Manager) Reconcile(ctx context.Context) error {
	steps, ok := plans[m.mode]
	if !ok {
		return &ConfigurationError{Key: ConfigKey, Value: string(m.mode)}
	}
	entities := m.provider.Entities()
	m.opts.logger.Info("Checking repositories",
		zap.Strings("entities", entities),
		zap.String("mode", m.mode.String()))

	targets, errs := m.targets(entities)
	results := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(m.opts.concurrency)
	for i, tgt := range targets {
		g.Go(func() error {
			results[i] = m.run(ctx, m.mode, steps, tgt.entity, tgt.def)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(append(errs, results...)...)
}

// Teardown drops every table when the mode is create-drop, and does nothing otherwise.
// It is meant to run at application shutdown.
func (m *Manager) Teardown(ctx context.Context) error {
	if m.mode != ModeCreateDrop {
		return nil
	}
	targets, errs := m.targets(m.provider.Entities())
	results := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(m.opts.concurrency)
	for i, tgt := range targets {
		g.Go(func() error {
			results[i] = m.run(ctx, m.mode, []step{stepDrop}, tgt.entity, tgt.def)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(append(errs, results...)...)
}

type target struct {
	entity string
	def    table.TableDefinition
}

// targets resolves entities to their tables, keeping the first entity of each table.
func (m *Manager) targets(entities []string) ([]target, []error) {
	var targets []target
	var errs []error
	seen := make(map[string]string)
	for _, entity := range entities {
		def, err := m.provider.Describe(entity)
		if err != nil {
			errs = append(errs, fmt.Errorf("describe %s: %w", entity, err))
			continue
		}
		if first, ok := seen[def.Name]; ok {
			m.opts.logger.Debug("table already handled for another entity",
				zap.String("entity", entity),
				zap.String("table", def.Name),
				zap.String("handled_by", first))
			continue
		}
		seen[def.Name] = entity
		targets = append(targets, target{entity: entity, def: def})
	}
	return targets, errs
}

func (m *Manager) run(ctx context.Context, mode Mode, steps []step, entity string, def table.TableDefinition) (err error) {
	ctx, span := m.tracer.Start(ctx, "ddl.Execute", trace.WithAttributes(
		attribute.String("ddl.mode", mode.String()),
		attribute.String("ddl.entity", entity),
		attribute.String("db.dynamodb.table_names", def.Name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := m.opts.logger.With(
		zap.String("entity", entity),
		zap.String("table", def.Name),
		zap.String("mode", mode.String()))
	if len(steps) == 0 {
		log.Info("schema lifecycle disabled, skipping table")
		return nil
	}
	for _, s := range steps {
		log.Info("running schema lifecycle step", zap.String("step", string(s)))
		switch s {
		case stepCreate:
			err = m.create(ctx, def)
		case stepDrop:
			err = m.drop(ctx, def)
		case stepValidate:
			err = m.validate(ctx, def)
		default:
			err = fmt.Errorf("unknown lifecycle step %q", s)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
