package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	gormSpanKey        = "datagrid:gorm:span"
	gormStartTimeKey   = "datagrid:gorm:start"
	gormTimingStartKey = "datagrid:gorm:timing_start"
)

type registerFunc func(name string, fn func(*gorm.DB)) error

// gormChain is one GORM callback chain with hooks around its core callback.
type gormChain struct {
	kind      string
	operation string
	before    registerFunc
	after     registerFunc
}

func gormChains(db *gorm.DB) []gormChain {
	cb := db.Callback()
	return []gormChain{
		{"query", "SELECT",
			func(n string, fn func(*gorm.DB)) error { return cb.Query().Before("gorm:query").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Query().After("gorm:query").Register(n, fn) }},
		{"create", "INSERT",
			func(n string, fn func(*gorm.DB)) error { return cb.Create().Before("gorm:create").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Create().After("gorm:create").Register(n, fn) }},
		{"update", "UPDATE",
			func(n string, fn func(*gorm.DB)) error { return cb.Update().Before("gorm:update").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Update().After("gorm:update").Register(n, fn) }},
		{"delete", "DELETE",
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().Before("gorm:delete").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().After("gorm:delete").Register(n, fn) }},
		{"row", "ROW",
			func(n string, fn func(*gorm.DB)) error { return cb.Row().Before("gorm:row").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Row().After("gorm:row").Register(n, fn) }},
		{"raw", "RAW",
			func(n string, fn func(*gorm.DB)) error { return cb.Raw().Before("gorm:raw").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Raw().After("gorm:raw").Register(n, fn) }},
	}
}

// RegisterGORMCallbacks registers GORM callbacks that trace session store
// queries. It does nothing unless tracing and detailed DB tracing are enabled.
func RegisterGORMCallbacks(db *gorm.DB, cfg *Config) error {
	if !cfg.dbTracing() {
		return nil
	}
	tracer := cfg.Tracer()
	for _, c := range gormChains(db) {
		spanName := "db." + c.kind
		operation := c.operation
		if err := c.before("datagrid:before_"+c.kind, func(tx *gorm.DB) {
			startSpan(tx, tracer, spanName)
		}); err != nil {
			return err
		}
		if err := c.after("datagrid:after_"+c.kind, func(tx *gorm.DB) {
			endSpan(tx, tracer, cfg, operation)
		}); err != nil {
			return err
		}
	}
	return nil
}

// RegisterServerTimingCallbacks registers GORM callbacks that add each
// query's duration to the request's DBTimeAccumulator. They work without
// OpenTelemetry.
func RegisterServerTimingCallbacks(db *gorm.DB) error {
	for _, c := range gormChains(db) {
		if err := c.before("datagrid_server_timing:before_"+c.kind, beforeTiming); err != nil {
			return err
		}
		if err := c.after("datagrid_server_timing:after_"+c.kind, afterTiming); err != nil {
			return err
		}
	}
	return nil
}

func beforeTiming(db *gorm.DB) {
	db.InstanceSet(gormTimingStartKey, time.Now())
}

func afterTiming(db *gorm.DB) {
	v, ok := db.InstanceGet(gormTimingStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	if db.Statement != nil && db.Statement.Context != nil {
		AddDBTime(db.Statement.Context, time.Since(start))
	}
}

func startSpan(db *gorm.DB, tracer *Tracer, spanName string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracer.StartSpan(ctx, spanName, attribute.String("db.system", db.Dialector.Name()))
	db.Statement.Context = ctx
	db.InstanceSet(gormSpanKey, span)
	db.InstanceSet(gormStartTimeKey, time.Now())
}

func endSpan(db *gorm.DB, tracer *Tracer, cfg *Config, operation string) {
	v, ok := db.InstanceGet(gormSpanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if db.Statement != nil {
		if table := db.Statement.Table; table != "" {
			span.SetAttributes(attribute.String("db.sql.table", table))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}
	tracer.RecordError(span, db.Error)

	if v, ok := db.InstanceGet(gormStartTimeKey); ok {
		if start, ok := v.(time.Time); ok {
			cfg.Metrics().RecordDBQuery(db.Statement.Context, operation, time.Since(start))
		}
	}
}
