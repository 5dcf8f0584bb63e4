package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger that components depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the [logging] table. Modules maps a module name to its level.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// registry owns every module logger and the LevelVar behind it.
type registry struct {
	mu       sync.RWMutex
	ready    bool
	cfg      Config
	global   slog.LevelVar
	loggers  map[string]*slog.Logger
	levels   map[string]*slog.LevelVar
	buffer   *RingBuffer
	callback LogCallback
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		loggers: map[string]*slog.Logger{},
		levels:  map[string]*slog.LevelVar{},
	}
}

// levelFor resolves the effective level of module. Callers hold mu.
func (r *registry) levelFor(module string) slog.Level {
	level := slog.LevelInfo
	if !r.ready {
		return level
	}
	if l, ok := parseLevel(r.cfg.Level); ok {
		level = l
	}
	if l, ok := parseLevel(r.cfg.Modules[module]); ok {
		level = l
	}
	return level
}

// relevel pushes the current config into every LevelVar. Callers hold mu.
func (r *registry) relevel() {
	r.global.Set(r.levelFor(""))
	for module, lv := range r.levels {
		lv.Set(r.levelFor(module))
	}
}

func (r *registry) sinks() (*RingBuffer, LogCallback) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buffer, r.callback
}

// Initialize applies config, allocates the history buffer and installs the
// default slog logger. Loggers obtained earlier are re-levelled in place.
func Initialize(config Config) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.cfg = config
	reg.ready = true
	reg.buffer = NewRingBuffer(defaultBufferSize)
	reg.relevel()

	slog.SetDefault(slog.New(newHandler(config.Format, &reg.global)))
}

// SetLevels replaces the global and per-module levels at runtime.
func SetLevels(level string, modules map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.cfg.Level = level
	reg.cfg.Modules = modules
	reg.relevel()
}

// GetBuffer returns the history buffer, or nil before Initialize.
func GetBuffer() *RingBuffer {
	buffer, _ := reg.sinks()
	return buffer
}

// SetLogCallback installs fn to receive every buffered entry. Pass nil to
// remove it.
func SetLogCallback(fn LogCallback) {
	reg.mu.Lock()
	reg.callback = fn
	reg.mu.Unlock()
}

// GetLogger returns the cached logger for module, creating it on first use.
// Every record it emits carries module=<name>.
func GetLogger(module string) *slog.Logger {
	reg.mu.RLock()
	logger, ok := reg.loggers[module]
	reg.mu.RUnlock()
	if ok {
		return logger
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if logger, ok := reg.loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(reg.levelFor(module))

	format := "text"
	if reg.ready {
		format = reg.cfg.Format
	}
	logger = slog.New(newHandler(format, lv)).With("module", module)
	reg.loggers[module] = logger
	reg.levels[module] = lv
	return logger
}

// newHandler builds the sink chain: stdout when attached, the journal when
// reachable, and always the history buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var stdout slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{NewBufferHandler(level)}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	if stdoutAttached() {
		handlers = append(handlers, stdout)
	}
	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAttached is false when stdout is closed or points at /dev/null.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	m := fi.Mode()
	return m.IsRegular() || m&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
