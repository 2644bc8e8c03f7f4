package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
)

const (
	// envLogPath configures the log file path; "-" logs to stderr.
	envLogPath = "WRITEAS_LOG"
	// envDebug enables Debugf output when set to a true value.
	envDebug = "WRITEAS_DEBUG"
)

var (
	mu      sync.Mutex
	std     *log.Logger
	logFile *os.File
	debug   atomic.Bool
)

// InitFromEnv initializes the logger using WRITEAS_LOG or a default path next
// to the executable.
func InitFromEnv() error {
	on, _ := strconv.ParseBool(os.Getenv(envDebug))
	debug.Store(on)
	path := os.Getenv(envLogPath)
	if path == "" {
		if exePath, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exePath), "writeas.log")
		} else {
			path = "./writeas.log"
		}
	}
	if path == "-" {
		SetOutput(os.Stderr)
		return nil
	}
	return Init(path)
}

// Init opens path in append mode, creating parent directories if needed.
// Calling Init after the logger is set up does nothing.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if std != nil {
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std = newLogger(f)
	return nil
}

// SetOutput replaces the destination, closing any file opened by Init.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	closeFile()
	std = newLogger(w)
}

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := closeFile()
	std = nil
	return err
}

// Infof logs informational messages.
func Infof(format string, args ...any) { write("INFO", format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { write("WARN", format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { write("ERROR", format, args...) }

// Debugf logs only when WRITEAS_DEBUG is enabled.
func Debugf(format string, args ...any) {
	if debug.Load() {
		write("DEBUG", format, args...)
	}
}

func write(level string, format string, args ...any) {
	mu.Lock()
	l := std
	mu.Unlock()
	if l == nil {
		// Fallback: initialize with default if not already.
		_ = InitFromEnv()
		mu.Lock()
		l = std
		mu.Unlock()
	}
	if l != nil {
		l.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

func closeFile() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
