package main

import (
	"io"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

func newLogger(out io.Writer, format string, verbose, quiet bool) (log.Logger, error) {
	var logger log.Logger
	switch format {
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(out))
	case "fmt", "":
		logger = log.NewLogfmtLogger(log.NewSyncWriter(out))
	default:
		return nil, errors.Errorf("unknown log format %q; expected fmt or json", format)
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)

	switch {
	case quiet:
		logger = level.NewFilter(logger, level.AllowNone())
	case verbose:
		logger = level.NewFilter(logger, level.AllowDebug())
	default:
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return logger, nil
}
