// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import (
	"github.com/sirupsen/logrus"
)

// LogrusOutputter is an Outputter that writes through a logrus
// logger. Levels map onto logrus levels as Error->error,
// Info->info and Debug (and beyond)->debug.
type LogrusOutputter struct {
	logger *logrus.Logger
	level  Level
}

// NewLogrusOutputter returns an outputter writing to logger and
// accepting messages at or below level. The logger's own level is
// adjusted so that it does not filter accepted messages.
func NewLogrusOutputter(logger *logrus.Logger, level Level) *LogrusOutputter {
	if level >= Debug {
		logger.SetLevel(logrus.DebugLevel)
	} else if logger.GetLevel() < logrus.InfoLevel {
		logger.SetLevel(logrus.InfoLevel)
	}
	return &LogrusOutputter{logger: logger, level: level}
}

// Level implements Outputter.
func (o *LogrusOutputter) Level() Level { return o.level }

// Output implements Outputter. The call depth is ignored; logrus
// reports callers on its own when configured to.
func (o *LogrusOutputter) Output(calldepth int, level Level, s string) error {
	if o.level < level || level == Off {
		return nil
	}
	switch {
	case level <= Error:
		o.logger.Error(s)
	case level == Info:
		o.logger.Info(s)
	default:
		o.logger.WithField("verbosity", level.String()).Debug(s)
	}
	return nil
}
