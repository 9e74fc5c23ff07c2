// Package log configures the logrus logger used for trustfetch diagnostics.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var defaultLogger = logrus.StandardLogger()

func init() {
	// Diagnostics go to stderr so that stdout stays usable for piping
	// resolved paths and JSON output.
	defaultLogger.Out = os.Stderr
	defaultLogger.SetLevel(logrus.WarnLevel)
}

// Configure sets the format and level of the default logger. An empty
// level means warn.
func Configure(format string, level string) error {
	switch format {
	case "json":
		defaultLogger.Formatter = &logrus.JSONFormatter{}
	case "text":
		defaultLogger.Formatter = &logrus.TextFormatter{}
	case "":
		// Just stick with the default
	default:
		return &InvalidFormatError{Format: format}
	}

	logrusLevel := logrus.WarnLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		logrusLevel = parsed
	}
	defaultLogger.SetLevel(logrusLevel)

	return nil
}

// SetOutput redirects the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// Default is the default logrus logger
func Default() *logrus.Entry { return defaultLogger.WithField("pid", os.Getpid()) }

// InvalidFormatError is returned by Configure for unsupported formats.
type InvalidFormatError struct {
	Format string
}

func (e *InvalidFormatError) Error() string {
	return "invalid logger format: " + e.Format
}
