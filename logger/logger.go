package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"argo_data_import/config"

	gormlogger "gorm.io/gorm/logger"
)

// Level is a log severity
type Level int

// Log levels, lowest first
const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[string]Level{
	"debug": DEBUG,
	"info":  INFO,
	"warn":  WARN,
	"error": ERROR,
}

var (
	mu          sync.Mutex
	infoLogger  *log.Logger
	errorLogger *log.Logger
	logFile     *os.File
	logLevel    = INFO
	sessionOpen bool
)

// ParseLevel maps a config level name to a Level, defaulting to INFO
func ParseLevel(name string) Level {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return INFO
}

// Init opens the log file from configuration and starts a session
func Init(cfg *config.Config) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}

	logPath := cfg.Logging.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cwd, logPath)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	var out, errOut io.Writer = file, file
	if cfg.Logging.LogToConsole {
		out = io.MultiWriter(os.Stdout, file)
		errOut = io.MultiWriter(os.Stderr, file)
	}

	mu.Lock()
	logFile = file
	mu.Unlock()
	SetOutput(out, errOut, ParseLevel(cfg.Logging.LogLevel))

	infoLogger.Printf("=== Session started at %s ===\n", time.Now().Format("2006-01-02 15:04:05"))
	infoLogger.Printf("Log file: %s\n", logPath)
	infoLogger.Printf("Log level: %s\n", cfg.Logging.LogLevel)
	infoLogger.Printf("Log to console: %t\n", cfg.Logging.LogToConsole)
	LogDivider()
	sessionOpen = true

	return nil
}

// SetOutput points the loggers at the given writers without a log file
func SetOutput(out, errOut io.Writer, level Level) {
	mu.Lock()
	defer mu.Unlock()
	infoLogger = log.New(out, "", 0)
	errorLogger = log.New(errOut, "", 0)
	logLevel = level
}

// Close ends the session and closes the log file
func Close() error {
	mu.Lock()
	file := logFile
	logFile = nil
	mu.Unlock()

	if file == nil {
		return nil
	}
	if sessionOpen {
		LogDivider()
		infoLogger.Printf("=== Session ended at %s ===\n\n", time.Now().Format("2006-01-02 15:04:05"))
		sessionOpen = false
	}
	return file.Close()
}

// GormLevel returns the gorm log level matching the configured level.
// SQL statements are only traced at debug.
func GormLevel() gormlogger.LogLevel {
	mu.Lock()
	defer mu.Unlock()
	switch logLevel {
	case DEBUG:
		return gormlogger.Info
	case INFO, WARN:
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

func enabled(level Level) bool {
	mu.Lock()
	defer mu.Unlock()
	return level >= logLevel
}

func output(level Level, prefix, msg string) {
	mu.Lock()
	l := infoLogger
	if level == ERROR {
		l = errorLogger
	}
	mu.Unlock()

	if l == nil {
		if level == ERROR {
			fmt.Fprint(os.Stderr, prefix+msg)
		} else {
			fmt.Print(prefix + msg)
		}
		return
	}
	l.Print(prefix + msg)
}

// Printf prints formatted text at info level
func Printf(format string, v ...interface{}) {
	if enabled(INFO) {
		output(INFO, "", fmt.Sprintf(format, v...))
	}
}

// Println prints a line at info level
func Println(v ...interface{}) {
	if enabled(INFO) {
		output(INFO, "", fmt.Sprintln(v...))
	}
}

// Debugf prints formatted debug text
func Debugf(format string, v ...interface{}) {
	if enabled(DEBUG) {
		output(DEBUG, "DEBUG: ", fmt.Sprintf(format, v...))
	}
}

// Warnf prints formatted warning text
func Warnf(format string, v ...interface{}) {
	if enabled(WARN) {
		output(WARN, "WARN: ", fmt.Sprintf(format, v...))
	}
}

// Errorf prints formatted error text (always logged regardless of level)
func Errorf(format string, v ...interface{}) {
	output(ERROR, "ERROR: ", fmt.Sprintf(format, v...))
}

// Fatalf prints formatted fatal error and exits (always logged)
func Fatalf(format string, v ...interface{}) {
	output(ERROR, "FATAL: ", fmt.Sprintf(format, v...))
	_ = Close()
	os.Exit(1)
}

// LogCommand logs the command being executed
func LogCommand(command string, args []string) {
	if len(args) > 1 {
		Printf("Command executed: %s %v\n", command, args[1:])
		return
	}
	Printf("Command executed: %s\n", command)
}

// LogDivider prints a divider line for better log organization
func LogDivider() {
	Println(strings.Repeat("-", 60))
}

// LogResult logs a result with status
func LogResult(operation string, success bool, details string) {
	status := "✅ %s: SUCCESS"
	if !success {
		status = "❌ %s: FAILED"
	}
	line := fmt.Sprintf(status, operation)
	if details != "" {
		line += " - " + details
	}
	if success {
		Println(line)
	} else {
		Errorf("%s\n", line)
	}
}

// LogProgress logs progress information
func LogProgress(current, total int, item string) {
	Printf("Progress: [%d/%d] %s\n", current, total, item)
}
