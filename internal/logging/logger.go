// Package logging provides config-driven categorized logging for disasmfacts.
// Each category gets its own named zap logger; when a log directory is
// configured every category writes to its own file. Logging is off unless
// debug mode is enabled.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config
	CategoryDecode  Category = "decode"  // Decode orchestration
	CategoryScan    Category = "scan"    // Byte/address scanning
	CategoryInsn    Category = "insn"    // Instruction decoding
	CategoryFacts   Category = "facts"   // Symbol/section/metadata fact building
	CategoryBackend Category = "backend" // Analysis backend (Mangle) operations
	CategoryUnwind  Category = "unwind"  // Exception frame decoding
	CategoryExport  Category = "export"  // Fact export (facts dir, sqlite)
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	Dir        string          // per-category log files; empty logs to stderr
	Categories map[string]bool // per-category toggles; missing means enabled
}

// Logger is a categorized logger. A Logger with no backing zap logger is a no-op.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	opts      Options
	optsMu    sync.RWMutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sink      zapcore.WriteSyncer
)

// Initialize applies logging options. It may be called again to reconfigure;
// existing category loggers are flushed and rebuilt lazily.
func Initialize(o Options) error {
	name := defaultString(o.Level, "info")
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}

	CloseAll()

	optsMu.Lock()
	opts = o
	level.SetLevel(lvl)
	sink = nil
	optsMu.Unlock()

	if !o.DebugMode {
		return nil
	}
	if o.Dir != "" {
		if err := os.MkdirAll(o.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	Boot("logging initialized: level=%s format=%s dir=%q", lvl, defaultString(o.Format, "console"), o.Dir)
	return nil
}

// UseSink routes every category to w, overriding file output. Tests use it
// to capture log lines.
func UseSink(w zapcore.WriteSyncer) {
	CloseAll()
	optsMu.Lock()
	sink = w
	optsMu.Unlock()
}

// IsDebugMode returns whether logging is enabled at all
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	core, err := newCore(category)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log for %s: %v\n", category, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		sugar:    zap.New(core).Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

func newCore(category Category) (zapcore.Core, error) {
	optsMu.RLock()
	o, w := opts, sink
	optsMu.RUnlock()

	encCfg := zap.NewDevelopmentEncoderConfig()
	encoder := zapcore.NewConsoleEncoder(encCfg)
	if o.Format == "json" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	if w == nil {
		if o.Dir == "" {
			w = zapcore.Lock(os.Stderr)
		} else {
			date := time.Now().Format("2006-01-02")
			path := filepath.Join(o.Dir, fmt.Sprintf("%s_%s.log", date, category))
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, err
			}
			w = zapcore.AddSync(file)
		}
	}
	return zapcore.NewCore(encoder, w, level), nil
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Debugf(format, args...)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Infof(format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Warnf(format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Errorf(format, args...)
	}
}

// With returns a logger carrying structured key/value context.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	if l.sugar == nil || len(fields) == 0 {
		return l
	}
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{category: l.category, sugar: l.sugar.With(kv...)}
}

// CloseAll flushes all loggers (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
	}
	loggers = make(map[Category]*Logger)
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Decode(format string, args ...interface{})      { Get(CategoryDecode).Info(format, args...) }
func DecodeDebug(format string, args ...interface{}) { Get(CategoryDecode).Debug(format, args...) }
func DecodeWarn(format string, args ...interface{})  { Get(CategoryDecode).Warn(format, args...) }
func DecodeError(format string, args ...interface{}) { Get(CategoryDecode).Error(format, args...) }

func Scan(format string, args ...interface{})      { Get(CategoryScan).Info(format, args...) }
func ScanDebug(format string, args ...interface{}) { Get(CategoryScan).Debug(format, args...) }

func Insn(format string, args ...interface{})      { Get(CategoryInsn).Info(format, args...) }
func InsnDebug(format string, args ...interface{}) { Get(CategoryInsn).Debug(format, args...) }

func Facts(format string, args ...interface{})      { Get(CategoryFacts).Info(format, args...) }
func FactsDebug(format string, args ...interface{}) { Get(CategoryFacts).Debug(format, args...) }

func Backend(format string, args ...interface{})      { Get(CategoryBackend).Info(format, args...) }
func BackendDebug(format string, args ...interface{}) { Get(CategoryBackend).Debug(format, args...) }
func BackendWarn(format string, args ...interface{})  { Get(CategoryBackend).Warn(format, args...) }

func Unwind(format string, args ...interface{})      { Get(CategoryUnwind).Info(format, args...) }
func UnwindDebug(format string, args ...interface{}) { Get(CategoryUnwind).Debug(format, args...) }
func UnwindWarn(format string, args ...interface{})  { Get(CategoryUnwind).Warn(format, args...) }

func Export(format string, args ...interface{})      { Get(CategoryExport).Info(format, args...) }
func ExportDebug(format string, args ...interface{}) { Get(CategoryExport).Debug(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
