package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *logrus.Logger
	warningLog *logrus.Logger
	errorLog   *logrus.Logger
	files      []*os.File
	std        *log.Logger
	stdWriter  *io.PipeWriter
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger writing into logDir, creating the directory if needed.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: logDir}
	if err := l.setupLoggers(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// NewDiscard returns a Logger that drops everything. Used by tests.
func NewDiscard() *Logger {
	return &Logger{
		infoLog:    newLevelLogger(io.Discard),
		warningLog: newLevelLogger(io.Discard),
		errorLog:   newLevelLogger(io.Discard),
	}
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers() error {
	infoFile, err := l.openLogFile(InfoFile)
	if err != nil {
		return err
	}
	warningFile, err := l.openLogFile(WarningFile)
	if err != nil {
		return err
	}
	errorFile, err := l.openLogFile(ErrorFile)
	if err != nil {
		return err
	}

	l.infoLog = newLevelLogger(io.MultiWriter(os.Stdout, infoFile))
	l.warningLog = newLevelLogger(io.MultiWriter(os.Stdout, warningFile))
	l.errorLog = newLevelLogger(io.MultiWriter(os.Stderr, errorFile))
	return nil
}

func newLevelLogger(out io.Writer) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(out)
	lg.SetLevel(logrus.InfoLevel)
	lg.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	return lg
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	path := filepath.Join(l.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Errorf(format, v...)
}

// StdLogger adapts the error level for http.Server.ErrorLog. The adapter is
// created once and released by Close.
func (l *Logger) StdLogger() *log.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.std == nil {
		l.stdWriter = l.errorLog.WriterLevel(logrus.ErrorLevel)
		l.std = log.New(l.stdWriter, "", 0)
	}
	return l.std
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	return nil
}

// Close releases the StdLogger adapter and the log files.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stdWriter != nil {
		l.stdWriter.Close()
		l.stdWriter = nil
		l.std = nil
	}
	for _, f := range l.files {
		f.Close()
	}
	l.files = nil
}
