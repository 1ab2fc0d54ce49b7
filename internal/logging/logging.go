package logging

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ConsoleFormatter renders entries as "LEVEL - message key=value ...".
type ConsoleFormatter struct{}

// Format implements logrus.Formatter.
func (f *ConsoleFormatter) Format(e *log.Entry) ([]byte, error) {
	b := e.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString(" - ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, formatValue(e.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatValue(v any) any {
	switch t := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", t)
	case error:
		return t.Error()
	}
	return v
}

// New returns a console logger writing to w at the given level.
func New(w io.Writer, level string) *log.Logger {
	l := log.New()
	l.SetOutput(w)
	l.SetFormatter(&ConsoleFormatter{})
	l.SetLevel(ParseLevel(level))
	return l
}

// ParseLevel converts a string log level to a logrus level.
// Defaults to info for unrecognized strings.
func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
