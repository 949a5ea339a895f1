package log

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
)

// CharmLogger implements Logger with charmbracelet/log for colored console output
type CharmLogger struct {
	logger *charmlog.Logger
	level  LogLevel
}

var _ Logger = (*CharmLogger)(nil)

// CharmOptions configures a CharmLogger
type CharmOptions struct {
	Output          io.Writer // Default os.Stderr
	Prefix          string    // Default "hrrag"
	Level           LogLevel
	ReportTimestamp bool
}

// NewCharmLogger creates a console logger with per-level lipgloss styles
func NewCharmLogger(opts CharmOptions) *CharmLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "hrrag"
	}

	logger := charmlog.NewWithOptions(out, charmlog.Options{
		Prefix:          prefix,
		ReportTimestamp: opts.ReportTimestamp,
	})
	logger.SetStyles(levelStyles())

	l := &CharmLogger{logger: logger}
	l.SetLevel(opts.Level)
	return l
}

func levelStyles() *charmlog.Styles {
	styles := charmlog.DefaultStyles()
	styles.Levels[charmlog.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").Foreground(lipgloss.Color("63"))
	styles.Levels[charmlog.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").Foreground(lipgloss.Color("86"))
	styles.Levels[charmlog.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").Bold(true).Foreground(lipgloss.Color("192"))
	styles.Levels[charmlog.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").Bold(true).Foreground(lipgloss.Color("204"))
	return styles
}

// Debug logs debug messages
func (l *CharmLogger) Debug(format string, v ...any) {
	if l.level <= LogLevelDebug {
		l.logger.Debugf(format, v...)
	}
}

// Info logs informational messages
func (l *CharmLogger) Info(format string, v ...any) {
	if l.level <= LogLevelInfo {
		l.logger.Infof(format, v...)
	}
}

// Warn logs warning messages
func (l *CharmLogger) Warn(format string, v ...any) {
	if l.level <= LogLevelWarn {
		l.logger.Warnf(format, v...)
	}
}

// Error logs error messages
func (l *CharmLogger) Error(format string, v ...any) {
	if l.level <= LogLevelError {
		l.logger.Errorf(format, v...)
	}
}

// SetLevel sets the log level
func (l *CharmLogger) SetLevel(level LogLevel) {
	l.level = level
	switch level {
	case LogLevelDebug:
		l.logger.SetLevel(charmlog.DebugLevel)
	case LogLevelWarn:
		l.logger.SetLevel(charmlog.WarnLevel)
	case LogLevelError, LogLevelNone:
		l.logger.SetLevel(charmlog.ErrorLevel)
	default:
		l.logger.SetLevel(charmlog.InfoLevel)
	}
}

// GetLevel returns the current log level
func (l *CharmLogger) GetLevel() LogLevel {
	return l.level
}
