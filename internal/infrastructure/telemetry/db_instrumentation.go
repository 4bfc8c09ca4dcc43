package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls query tracing and query/pool metrics on the ledger database.
type DBConfig struct {
	TraceEnabled       bool
	MetricsEnabled     bool
	LogFullSQL         bool          // include bound variables in spans and slow query logs (dev only)
	SlowQueryThreshold time.Duration // default 200ms
	PoolStatsInterval  time.Duration // default 15s
	DBSystem           string        // default "postgresql"
}

func (c *DBConfig) applyDefaults() {
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.PoolStatsInterval <= 0 {
		c.PoolStatsInterval = 15 * time.Second
	}
	if c.DBSystem == "" {
		c.DBSystem = "postgresql"
	}
}

// DBInstrumentation is a GORM plugin. It registers otelgorm for query spans and
// times every statement to feed db_* metrics, span annotations and slow query logs.
type DBInstrumentation struct {
	config DBConfig
	logger *zap.Logger

	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	poolConns      *Gauge
	poolConnsMax   *Gauge

	sqlDB    *sql.DB
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBInstrumentation builds the plugin. meter may be nil when metrics are disabled.
func NewDBInstrumentation(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	d := &DBInstrumentation{
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if !cfg.MetricsEnabled || meter == nil {
		d.config.MetricsEnabled = false
		return d, nil
	}

	var err error
	if d.queryTotal, err = NewCounter(meter,
		"db_query_total", "Database statements by operation and table", "{query}"); err != nil {
		return nil, err
	}
	if d.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if d.slowQueryTotal, err = NewCounter(meter,
		"db_slow_query_total", "Statements slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	if d.poolConns, err = NewGauge(meter,
		"db_pool_connections", "Connections in the pool by state", "{connection}"); err != nil {
		return nil, err
	}
	if d.poolConnsMax, err = NewGauge(meter,
		"db_pool_connections_max", "Maximum open connections", "{connection}"); err != nil {
		return nil, err
	}
	return d, nil
}

// Name implements gorm.Plugin
func (d *DBInstrumentation) Name() string {
	return "stockledger:db_instrumentation"
}

// Initialize implements gorm.Plugin
func (d *DBInstrumentation) Initialize(db *gorm.DB) error {
	if d.config.TraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(d.config.DBSystem)}
		if !d.config.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}
	return d.registerCallbacks(db)
}

func (d *DBInstrumentation) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) { d.after(tx, op) }
	}

	// op "" means the operation is read off the SQL text
	regs := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("ledger_db:before_create", d.before) },
		func() error { return cb.Query().Before("gorm:query").Register("ledger_db:before_query", d.before) },
		func() error { return cb.Update().Before("gorm:update").Register("ledger_db:before_update", d.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("ledger_db:before_delete", d.before) },
		func() error { return cb.Row().Before("gorm:row").Register("ledger_db:before_row", d.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("ledger_db:before_raw", d.before) },
		func() error { return cb.Create().After("gorm:create").Register("ledger_db:after_create", after("INSERT")) },
		func() error { return cb.Query().After("gorm:query").Register("ledger_db:after_query", after("SELECT")) },
		func() error { return cb.Update().After("gorm:update").Register("ledger_db:after_update", after("UPDATE")) },
		func() error { return cb.Delete().After("gorm:delete").Register("ledger_db:after_delete", after("DELETE")) },
		func() error { return cb.Row().After("gorm:row").Register("ledger_db:after_row", after("")) },
		func() error { return cb.Raw().After("gorm:raw").Register("ledger_db:after_raw", after("")) },
	}
	for _, reg := range regs {
		if err := reg(); err != nil {
			return err
		}
	}
	return nil
}

type dbStartTimeKey struct{}

func (d *DBInstrumentation) before(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tx.Statement.Context = context.WithValue(ctx, dbStartTimeKey{}, time.Now())
}

func (d *DBInstrumentation) after(tx *gorm.DB, op string) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	if op == "" {
		op = DetectOperation(tx.Statement.SQL.String())
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}

	var elapsed time.Duration
	if start, ok := ctx.Value(dbStartTimeKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	slow := elapsed > d.config.SlowQueryThreshold

	d.recordQuery(ctx, op, table, elapsed, slow)
	d.annotateSpan(ctx, tx, elapsed, slow)

	if slow {
		fields := []zap.Field{
			zap.String("operation", op),
			zap.String("table", table),
			zap.Duration("duration", elapsed),
			zap.Int64("rows_affected", tx.Statement.RowsAffected),
		}
		if d.config.LogFullSQL {
			fields = append(fields, zap.String("sql", tx.Dialector.Explain(tx.Statement.SQL.String(), tx.Statement.Vars...)))
		}
		d.logger.Warn("Slow query", fields...)
	}
}

func (d *DBInstrumentation) recordQuery(ctx context.Context, op, table string, elapsed time.Duration, slow bool) {
	if !d.config.MetricsEnabled {
		return
	}
	d.queryTotal.Inc(ctx, AttrDBOperation.String(op), AttrDBTable.String(table))
	d.queryDuration.RecordDuration(ctx, elapsed, AttrDBOperation.String(op))
	if slow {
		d.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

func (d *DBInstrumentation) annotateSpan(ctx context.Context, tx *gorm.DB, elapsed time.Duration, slow bool) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.RecordError(tx.Error)
		span.SetStatus(codes.Error, tx.Error.Error())
	}
	if slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", d.config.SlowQueryThreshold.Milliseconds()),
		))
	}
}

// DetectOperation returns the leading SQL verb of a raw statement.
func DetectOperation(sqlText string) string {
	s := strings.ToUpper(strings.TrimSpace(sqlText))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(s, verb) {
			return verb
		}
	}
	return "OTHER"
}

// StartPoolStats samples sql.DB pool statistics every PoolStatsInterval until Stop.
func (d *DBInstrumentation) StartPoolStats(ctx context.Context, sqlDB *sql.DB) {
	if !d.config.MetricsEnabled || sqlDB == nil {
		return
	}
	d.sqlDB = sqlDB

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.config.PoolStatsInterval)
		defer ticker.Stop()

		d.collectPoolStats(ctx)
		for {
			select {
			case <-ticker.C:
				d.collectPoolStats(ctx)
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (d *DBInstrumentation) collectPoolStats(ctx context.Context) {
	stats := d.sqlDB.Stats()
	d.poolConnsMax.Record(ctx, int64(stats.MaxOpenConnections))
	d.poolConns.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	d.poolConns.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	d.poolConns.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool statistics sampling. Safe to call more than once.
func (d *DBInstrumentation) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.wg.Wait()
	})
}

// InstrumentDB installs DBInstrumentation on db and starts pool sampling.
// It returns nil when neither tracing nor metrics are enabled.
func InstrumentDB(ctx context.Context, db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if !cfg.TraceEnabled && !cfg.MetricsEnabled {
		return nil, nil
	}
	d, err := NewDBInstrumentation(meter, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Use(d); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	d.StartPoolStats(ctx, sqlDB)

	d.logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", d.config.TraceEnabled),
		zap.Bool("metrics", d.config.MetricsEnabled),
		zap.Duration("slow_query_threshold", d.config.SlowQueryThreshold),
	)
	return d, nil
}
