package platform

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Console is the platform console writer: a colorized line emitter
// producing diagnostics shaped as `[LEVEL] file:line - message`. It
// wraps logrus the way a CLI launcher's main.go typically configures its
// logger, with a formatter tailored to this line shape instead of
// logrus's default text layout.
type Console struct {
	log *logrus.Logger
}

// NewConsole builds a Console writing to w (os.Stderr in the CLI
// launcher) at the given level ("debug", "info", "warning", "error",
// "fatal" — the same vocabulary as the `--log-level` flag).
func NewConsole(w *os.File, level string) *Console {
	l := logrus.New()
	l.SetOutput(w)
	l.SetReportCaller(true)
	l.SetFormatter(&consoleFormatter{})
	l.SetLevel(parseLevel(level))
	return &Console{log: l}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warning", "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func (c *Console) Debugf(format string, args ...interface{}) { c.log.Debugf(format, args...) }
func (c *Console) Infof(format string, args ...interface{})  { c.log.Infof(format, args...) }
func (c *Console) Warnf(format string, args ...interface{})  { c.log.Warnf(format, args...) }
func (c *Console) Errorf(format string, args ...interface{}) { c.log.Errorf(format, args...) }

// consoleFormatter renders `[LEVEL] file:line - message` with ANSI color
// by severity, in place of logrus's own TextFormatter/JSONFormatter.
type consoleFormatter struct{}

var levelColor = map[logrus.Level]int{
	logrus.DebugLevel: 90, // gray
	logrus.InfoLevel:  36, // cyan
	logrus.WarnLevel:  33, // yellow
	logrus.ErrorLevel: 31, // red
	logrus.FatalLevel: 41, // red background
	logrus.PanicLevel: 41,
}

func (f *consoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	loc := "???:0"
	if entry.Caller != nil {
		loc = fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}

	color := levelColor[entry.Level]
	fmt.Fprintf(&b, "\x1b[%dm[%s]\x1b[0m %s - %s\n", color, strings.ToUpper(entry.Level.String()), loc, entry.Message)
	return b.Bytes(), nil
}
