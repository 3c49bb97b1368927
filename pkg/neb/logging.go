// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package neb

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// standard log field names
const (
	FUNC     = "func"
	QUEUE    = "queue"
	REPLY_ID = "reply_id"
	VERB     = "verb"
	TARGET   = "target"
	CONN_ID  = "conn_id"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

// NewPackageLogger returns a new logger with pkg={pkg}
// where {pkg} is o's package path
// o must be for a named type because the package path can only be obtained for named types
func NewPackageLogger(o interface{}) zerolog.Logger {
	pkg := objectPackage(reflect.TypeOf(o))
	if pkg == "" {
		panic("only objects for named types are supported")
	}
	return log.With().
		Str("pkg", pkg).
		Logger().
		Output(os.Stderr)
}

func objectPackage(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Ptr {
		return objectPackage(t.Elem())
	}
	return t.PkgPath()
}

// SetLogLevel sets the application log level, for all loggers. Valid values are : [DEBUG,INFO,WARN,ERROR]
// Unknown values fall back to WARN.
func SetLogLevel(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// LoggingLevel returns the application log level. The default is WARN.
func LoggingLevel() zerolog.Level {
	return zerolog.GlobalLevel()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}
