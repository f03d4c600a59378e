package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const maxLoggedSQL = 1000

// GormLogger routes GORM output through zap. Bound parameters are never
// logged, and expected outcomes of the users queries (no row, duplicate
// email) are not reported as errors.
type GormLogger struct {
	ZapLogger     *zap.Logger
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel
}

// NewGormLogger builds a GormLogger whose verbosity follows the application
// log level.
func NewGormLogger(zapLogger *zap.Logger, slowQuerySeconds float64, appLevel string) *GormLogger {
	return &GormLogger{
		ZapLogger:     zapLogger.Named("gorm"),
		SlowThreshold: time.Duration(slowQuerySeconds * float64(time.Second)),
		LogLevel:      gormLevel(appLevel),
	}
}

func gormLevel(appLevel string) gormlogger.LogLevel {
	switch appLevel {
	case "silent":
		return gormlogger.Silent
	case "error", "dpanic", "panic", "fatal":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// ParamsFilter implements gorm.ParamsFilter. Values are dropped so password
// hashes and emails stay out of the query log.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, level gormlogger.LogLevel, msg string, data []interface{}) {
	if l.LogLevel < level {
		return
	}

	text := fmt.Sprintf(msg, data...)
	log := WithContext(ctx, l.ZapLogger)
	switch level {
	case gormlogger.Error:
		log.Error(text)
	case gormlogger.Warn:
		log.Warn(text)
	default:
		log.Info(text)
	}
}

// Trace implements gormlogger.Interface. Failures are logged at error,
// constraint violations and slow queries at warn, everything else at info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	log := WithContext(ctx, l.ZapLogger)

	switch {
	case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
		if l.LogLevel >= gormlogger.Info {
			log.Info("gorm query", l.queryFields(fc, elapsed)...)
		}
	case err != nil && errors.Is(err, gorm.ErrDuplicatedKey):
		if l.LogLevel >= gormlogger.Warn {
			log.Warn("gorm constraint violation", l.queryFields(fc, elapsed)...)
		}
	case err != nil:
		log.Error("gorm query error", append(l.queryFields(fc, elapsed), zap.Error(err))...)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		log.Warn("gorm slow query", append(l.queryFields(fc, elapsed), zap.Duration("threshold", l.SlowThreshold))...)
	case l.LogLevel >= gormlogger.Info:
		log.Info("gorm query", l.queryFields(fc, elapsed)...)
	}
}

func (l *GormLogger) queryFields(fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()

	fields := make([]zap.Field, 0, 4)
	if len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
		fields = append(fields, zap.Bool("sql_truncated", true))
	}
	return append(fields,
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
}
