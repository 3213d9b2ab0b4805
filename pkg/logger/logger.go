package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Env   string
	Level string
	// File, when set, receives a copy of every entry and is rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger. Production emits JSON, anything else
// emits human readable text.
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	if opts.Env == "production" || opts.Env == "prod" {
		l.Formatter = &logrus.JSONFormatter{}
		l.Level = logrus.InfoLevel
	} else {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
		l.Level = logrus.DebugLevel
	}

	if opts.Level != "" {
		if level, err := logrus.ParseLevel(opts.Level); err == nil {
			l.Level = level
		} else {
			l.WithField("level", opts.Level).Warn("unknown log level, keeping default")
		}
	}

	if opts.File != "" {
		l.Out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		})
	}

	return l
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
