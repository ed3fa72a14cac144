package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConsolePath selects stderr as the log destination
const ConsolePath = "console"

// InitLog parses and sets the log level and destination. Diagnostic logs
// never go to stdout, which belongs to the supervised tool.
func InitLog(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	log.SetOutput(Writer(logPath))
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	log.SetLevel(level)
	return nil
}

// Writer returns the sink for logPath: a rotating file, or stderr for an
// empty path and "console".
func Writer(logPath string) io.Writer {
	if logPath == "" || logPath == ConsolePath {
		return os.Stderr
	}
	return &lumberjack.Logger{
		// Log file absolute path, os agnostic
		Filename:   filepath.ToSlash(logPath),
		MaxSize:    5, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
}
