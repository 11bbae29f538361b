package log

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger traces a single operation through its steps. Steps are
// emitted at debug level, failures at error level.
type StructuredLogger struct {
	name   string
	level  zapcore.Level
	fields []zap.Field
}

func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.DebugLevel}
}

func NewInfoLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.InfoLevel}
}

// WithContext returns a copy carrying the request id found in ctx, if any.
func (l *StructuredLogger) WithContext(ctx context.Context) *StructuredLogger {
	cp := *l
	cp.fields = append([]zap.Field{}, l.fields...)
	if id := requestid.FromContext(ctx); id != "" {
		cp.fields = append(cp.fields, zap.String("request_id", id))
	}
	return &cp
}

func (l *StructuredLogger) Operation(name string) *OperationBuilder {
	b := &OperationBuilder{logger: l, operation: name}
	b.fields = append(b.fields, l.fields...)
	b.fields = append(b.fields, zap.String("operation", name))
	return b
}

type fieldSet struct {
	fields []zap.Field
}

func (f *fieldSet) add(field zap.Field) {
	f.fields = append(f.fields, field)
}

type OperationBuilder struct {
	fieldSet
	logger    *StructuredLogger
	operation string
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.add(zap.String(key, value))
	return b
}

func (b *OperationBuilder) WithStringPtr(key string, value *string) *OperationBuilder {
	if value != nil {
		b.add(zap.String(key, *value))
	}
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.add(zap.Int(key, value))
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.add(zap.Bool(key, value))
	return b
}

func (b *OperationBuilder) WithUUID(key string, value uuid.UUID) *OperationBuilder {
	b.add(zap.String(key, value.String()))
	return b
}

func (b *OperationBuilder) WithRequestBody(key string, body any) *OperationBuilder {
	b.add(zap.Any(key, body))
	return b
}

func (b *OperationBuilder) Build() *OperationTracer {
	b.add(zap.String("logger_name", b.logger.name))
	return &OperationTracer{
		logger:  zap.L().Named(b.logger.name).WithOptions(zap.AddCallerSkip(1)),
		level:   b.logger.level,
		fields:  b.fields,
		started: time.Now(),
	}
}

type OperationTracer struct {
	logger  *zap.Logger
	level   zapcore.Level
	fields  []zap.Field
	started time.Time
}

func (t *OperationTracer) Step(name string) *LogEntry {
	return t.entry(t.level, "step", zap.String("step", name))
}

func (t *OperationTracer) Success() *LogEntry {
	return t.entry(t.level, "success", zap.Duration("duration", time.Since(t.started)))
}

func (t *OperationTracer) Error(err error) *LogEntry {
	return t.entry(zapcore.ErrorLevel, "error", zap.Error(err), zap.Duration("duration", time.Since(t.started)))
}

func (t *OperationTracer) entry(level zapcore.Level, msg string, extra ...zap.Field) *LogEntry {
	e := &LogEntry{tracer: t, level: level, msg: msg}
	e.fields = append(e.fields, t.fields...)
	e.fields = append(e.fields, extra...)
	return e
}

type LogEntry struct {
	fieldSet
	tracer *OperationTracer
	level  zapcore.Level
	msg    string
}

func (e *LogEntry) WithString(key, value string) *LogEntry {
	e.add(zap.String(key, value))
	return e
}

func (e *LogEntry) WithStringPtr(key string, value *string) *LogEntry {
	if value != nil {
		e.add(zap.String(key, *value))
	}
	return e
}

func (e *LogEntry) WithInt(key string, value int) *LogEntry {
	e.add(zap.Int(key, value))
	return e
}

func (e *LogEntry) WithBool(key string, value bool) *LogEntry {
	e.add(zap.Bool(key, value))
	return e
}

func (e *LogEntry) WithUUID(key string, value uuid.UUID) *LogEntry {
	e.add(zap.String(key, value.String()))
	return e
}

func (e *LogEntry) Log() {
	if ce := e.tracer.logger.Check(e.level, e.msg); ce != nil {
		ce.Write(e.fields...)
	}
}
