// Package logging builds the zap loggers used by the ddb tool.
package logging

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// New returns a JSON logger at info level for "prod"/"production", and a console
// logger at debug level otherwise.
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Badger adapts l to the badger.Logger interface, so the local store logs to the
// same sink. Badger's info chatter is logged at debug.
func Badger(l *zap.Logger) badger.Logger {
	return badgerLogger{l.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

type badgerLogger struct {
	s *zap.SugaredLogger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.s.Errorf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.s.Warnf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.s.Debugf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.s.Debugf(strings.TrimSpace(format), args...)
}
