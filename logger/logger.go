package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger = zap.NewNop()
	mu           sync.RWMutex
)

// Config 定义日志配置
type Config struct {
	Level      string // debug, info, warn, error
	OutputPath string // 为空时只输出到 stdout
	MaxSize    int    // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New builds a JSON logger writing to stdout and, when OutputPath is set, to a
// lumberjack-rotated file as well.
func New(cfg Config) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(os.Stdout), level),
	}

	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    orDefault(cfg.MaxSize, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAge, 30),
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// InitLogger 初始化全局日志
func InitLogger(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the process-wide logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// L returns the process-wide logger. It is a no-op logger until InitLogger runs.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Named returns a child of the process-wide logger.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

func Debug(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...) }

// Fatal 输出致命错误级别日志并退出程序
func Fatal(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...) }

// 辅助函数，用于创建字段
func String(key string, val string) zap.Field { return zap.String(key, val) }
func Int(key string, val int) zap.Field       { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field   { return zap.Int64(key, val) }
func Bool(key string, val bool) zap.Field     { return zap.Bool(key, val) }
func Any(key string, val interface{}) zap.Field {
	return zap.Any(key, val)
}

// ErrorField 创建错误字段
func ErrorField(err error) zap.Field { return zap.Error(err) }

// Duration 创建持续时间字段
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
