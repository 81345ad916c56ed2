package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const gormQueryMessage = "gorm.query"

type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// Expected misses and replay conflicts are part of normal control flow
	// (link lookups, idempotent ledger inserts) and are not errors.
	IgnoreRecordNotFound bool
	DowngradeDuplicates  bool
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		IgnoreRecordNotFound: true,
		DowngradeDuplicates:  true,
	}
}

// GormLogger routes GORM output through the request-scoped zap logger.
// Bound parameters are never logged since they carry visitor IPs and
// user agents.
type GormLogger struct {
	cfg GormLoggerConfig
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zap.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zap.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zap.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < min {
		return
	}
	if ce := FromContext(ctx).Check(level, msg); ce != nil {
		fields := []zap.Field{zap.String("component", "gorm")}
		if len(data) > 0 {
			fields = append(fields, zap.Any("data", data))
		}
		ce.Write(fields...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	if level, ok := l.levelFor(elapsed, err); ok {
		l.query(ctx, fc, elapsed, err, level)
	}
}

func (l *GormLogger) levelFor(elapsed time.Duration, err error) (zapcore.Level, bool) {
	if err != nil && !(l.cfg.IgnoreRecordNotFound && errors.Is(err, gorm.ErrRecordNotFound)) {
		if l.cfg.DowngradeDuplicates && errors.Is(err, gorm.ErrDuplicatedKey) {
			return zap.WarnLevel, l.cfg.Level >= gormlogger.Warn
		}
		return zap.ErrorLevel, l.cfg.Level >= gormlogger.Error
	}
	if l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold {
		return zap.WarnLevel, l.cfg.Level >= gormlogger.Warn
	}
	return zap.DebugLevel, l.cfg.Level >= gormlogger.Info
}

func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) query(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, level zapcore.Level) {
	ce := FromContext(ctx).Check(level, gormQueryMessage)
	if ce == nil {
		return
	}

	sql, rows := fc()
	op, table := describeSQL(sql)
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", op),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if table != "" {
		fields = append(fields, zap.String("table", table))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func operationFromSQL(sql string) string {
	op, _ := describeSQL(sql)
	return op
}

// describeSQL returns the statement verb and the first table it touches.
func describeSQL(sql string) (op, table string) {
	tokens := strings.Fields(sql)
	op = "UNKNOWN"
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE", "MERGE":
			if op == "UNKNOWN" {
				op = token
			}
			if token == "UPDATE" {
				table = tableAt(tokens, i+1)
			}
		case "FROM", "INTO":
			if table == "" {
				table = tableAt(tokens, i+1)
			}
		}
		if op != "UNKNOWN" && table != "" {
			break
		}
	}
	return op, table
}

func tableAt(tokens []string, i int) string {
	if i >= len(tokens) {
		return ""
	}
	name := strings.Trim(tokens[i], "\"`();")
	if name == "" || strings.EqualFold(name, "SELECT") {
		return ""
	}
	return strings.ToLower(name)
}

var _ gormlogger.Interface = (*GormLogger)(nil)
