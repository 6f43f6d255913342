// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/CodeStranger-Fred/mdplearn/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// New returns a logger configured by cfg. When cfg.File is set the returned
// closer must be called to release it.
func New(cfg config.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse log level")
	}

	logger := logrus.New()
	logger.SetLevel(level)
	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = io.NopCloser(nil)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open log file %s", cfg.File)
		}
		logger.SetOutput(f)
		closer = f
	}
	return logger, closer, nil
}
