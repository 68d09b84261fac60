package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prohub/nexus/backend/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	dbSystemKey    = "db.system"
	dbTableKey     = "db.table"
	dbOperationKey = "db.operation"
	dbStatementKey = "db.statement"

	spanKey      = "telemetry:span"
	startTimeKey = "telemetry:start"
	operationKey = "telemetry:operation"

	maxStatementLength = 500
)

// GORMPlugin returns a GORM plugin that traces statements and records
// query metrics for them
func GORMPlugin() gorm.Plugin {
	return &instrumentationPlugin{
		tracer: otel.Tracer("gorm"),
	}
}

type instrumentationPlugin struct {
	tracer trace.Tracer
	system string
}

func (p *instrumentationPlugin) Name() string {
	return "telemetry:instrumentation"
}

func (p *instrumentationPlugin) Initialize(db *gorm.DB) error {
	p.system = dbSystem(db.Dialector.Name())

	cb := db.Callback()
	hooks := []struct {
		name      string
		operation string
		before    func(name string, fn func(*gorm.DB)) error
		after     func(name string, fn func(*gorm.DB)) error
	}{
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"create", "INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "SELECT", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
	}

	for _, h := range hooks {
		operation := h.operation
		if err := h.before("telemetry:before_"+h.name, func(tx *gorm.DB) { p.start(tx, operation) }); err != nil {
			return fmt.Errorf("failed to register before_%s callback: %w", h.name, err)
		}
		if err := h.after("telemetry:after_"+h.name, p.finish); err != nil {
			return fmt.Errorf("failed to register after_%s callback: %w", h.name, err)
		}
	}
	return nil
}

func (p *instrumentationPlugin) start(db *gorm.DB, operation string) {
	db.InstanceSet(startTimeKey, time.Now())
	db.InstanceSet(operationKey, operation)

	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	ctx, span := p.tracer.Start(ctx, "db."+strings.ToLower(operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(dbSystemKey, p.system),
			attribute.String(dbOperationKey, operation),
		),
	)
	db.Statement.Context = ctx
	db.InstanceSet(spanKey, span)
}

func (p *instrumentationPlugin) finish(db *gorm.DB) {
	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}
	operation, _ := instanceString(db, operationKey)

	status := "success"
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		status = "error"
	}

	var elapsed time.Duration
	if raw, ok := db.InstanceGet(startTimeKey); ok {
		if started, ok := raw.(time.Time); ok {
			elapsed = time.Since(started)
		}
	}

	m := metrics.Get()
	m.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
	m.DatabaseQueriesTotal.WithLabelValues(operation, table, status).Inc()

	raw, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := raw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	span.SetAttributes(
		attribute.String(dbTableKey, table),
		attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
	)
	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLength {
			sql = sql[:maxStatementLength] + "... (truncated)"
		}
		span.SetAttributes(attribute.String(dbStatementKey, sql))
	}
	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}
	if status == "error" {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}

func instanceString(db *gorm.DB, key string) (string, bool) {
	raw, ok := db.InstanceGet(key)
	if !ok {
		return "unknown", false
	}
	s, ok := raw.(string)
	if !ok {
		return "unknown", false
	}
	return s, true
}

func dbSystem(dialector string) string {
	switch dialector {
	case "postgres":
		return "postgresql"
	case "sqlite":
		return "sqlite"
	}
	return dialector
}
