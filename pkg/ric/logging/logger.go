/*
Copyright 2023 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logging

import (
	"io"
	"strings"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
)

const (
	DefaultLevel = "info"

	encoding = "json"
)

// NewLogger creates the root logger of the process. Records are single-line
// JSON objects written to sink (errors go to errSink)
func NewLogger(name string, levelName string, sink io.Writer, errSink io.Writer) (logger.Logger, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to parse log level")
	}

	newLogger, err := nucliozap.NewNuclioZap(name, encoding, nil, sink, errSink, level)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create logger")
	}

	return newLogger, nil
}

// ParseLevel maps a level name onto a logger level. An empty name means the default
func ParseLevel(levelName string) (nucliozap.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelName)) {
	case "debug":
		return nucliozap.DebugLevel, nil
	case "", "info":
		return nucliozap.InfoLevel, nil
	case "warn", "warning":
		return nucliozap.WarnLevel, nil
	case "error":
		return nucliozap.ErrorLevel, nil
	}

	return nucliozap.InfoLevel, errors.Errorf("Unknown log level: %s", levelName)
}
