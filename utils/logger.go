package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  = logrus.New()
	ErrorLogger = logrus.New()
)

// InitLogger configures both loggers. Level is a logrus level name
// ("debug", "info", ...); unknown names fall back to info.
func InitLogger(level string, jsonFormat bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if jsonFormat {
		formatter = &logrus.JSONFormatter{}
	}

	// InfoLogger ke stdout, ErrorLogger ke stderr
	InfoLogger.SetOutput(os.Stdout)
	InfoLogger.SetFormatter(formatter)
	InfoLogger.SetLevel(lvl)

	ErrorLogger.SetOutput(os.Stderr)
	ErrorLogger.SetFormatter(formatter)
	ErrorLogger.SetLevel(logrus.WarnLevel)
}
