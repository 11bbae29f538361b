package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/ngrok/sqlmw"
	"github.com/prometheus/client_golang/prometheus"
)

const instrumentedDriverName = "pgx-instrumented"

var (
	verbRegex    = regexp.MustCompile(`^\s*(\w+)`)
	dbOpLatency  *prometheus.HistogramVec
	dbOpTotal    *prometheus.CounterVec
	registerOnce sync.Once
)

func init() {
	dbOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "db_op_duration_milliseconds",
		Help:      "Time spent on a database operation",
		Subsystem: "case_engine",
		Buckets:   []float64{5, 25, 100, 300, 1000, 5000},
	},
		[]string{"op", "verb"},
	)
	dbOpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "db_op_total",
		Help:      "Number of database operations",
		Subsystem: "case_engine",
	},
		[]string{"op"},
	)

	prometheus.MustRegister(dbOpLatency)
	prometheus.MustRegister(dbOpTotal)
}

// instrumentedDriver registers, once, a pgx driver whose calls are measured
// by metricInterceptor and returns its name.
func instrumentedDriver() string {
	registerOnce.Do(func() {
		sql.Register(instrumentedDriverName, sqlmw.Driver(&stdlib.Driver{}, &metricInterceptor{}))
	})
	return instrumentedDriverName
}

type metricInterceptor struct {
	sqlmw.NullInterceptor
}

func (mi *metricInterceptor) ConnBeginTx(ctx context.Context, conn driver.ConnBeginTx, opts driver.TxOptions) (context.Context, driver.Tx, error) {
	defer mi.measure("begin", "begin", time.Now())

	tx, err := conn.BeginTx(ctx, opts)
	return ctx, tx, err
}

func (mi *metricInterceptor) ConnExecContext(ctx context.Context, conn driver.ExecerContext, query string, args []driver.NamedValue) (driver.Result, error) {
	defer mi.measure("exec", sqlVerb(query), time.Now())

	return conn.ExecContext(ctx, query, args)
}

func (mi *metricInterceptor) ConnQueryContext(ctx context.Context, conn driver.QueryerContext, query string, args []driver.NamedValue) (context.Context, driver.Rows, error) {
	defer mi.measure("query", sqlVerb(query), time.Now())

	rows, err := conn.QueryContext(ctx, query, args)
	return ctx, rows, err
}

func (mi *metricInterceptor) TxCommit(ctx context.Context, conn driver.Tx) error {
	defer mi.measure("commit", "commit", time.Now())
	return conn.Commit()
}

func (mi *metricInterceptor) TxRollback(ctx context.Context, conn driver.Tx) error {
	defer mi.measure("rollback", "rollback", time.Now())
	return conn.Rollback()
}

func (mi *metricInterceptor) measure(op, verb string, start time.Time) {
	dbOpTotal.With(prometheus.Labels{"op": op}).Inc()
	dbOpLatency.With(prometheus.Labels{"op": op, "verb": verb}).
		Observe(float64(time.Since(start).Milliseconds()))
}

// sqlVerb returns the leading keyword of a statement, lower-cased.
func sqlVerb(query string) string {
	m := verbRegex.FindStringSubmatch(query)
	if len(m) < 2 {
		return "unknown"
	}
	return strings.ToLower(m[1])
}
