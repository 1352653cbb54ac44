package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ConsoleOutput writes human-readable log lines to stdout or stderr.
type ConsoleOutput struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewConsoleOutput creates a console output. If useStderr is true, entries
// go to stderr instead of stdout.
func NewConsoleOutput(useStderr bool) *ConsoleOutput {
	w := io.Writer(os.Stdout)
	if useStderr {
		w = os.Stderr
	}
	return &ConsoleOutput{writer: w}
}

func (o *ConsoleOutput) Write(e LogEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ts := time.Unix(0, e.Time).Format("2006-01-02T15:04:05.000Z07:00")
	_, err := fmt.Fprintf(o.writer, "%s %-5s %s:%d %s%s\n",
		ts, e.Severity, e.File, e.Line, e.Message, formatFields(e.Fields))
	return err
}

func (o *ConsoleOutput) Sync() error { return nil }

func (o *ConsoleOutput) Close() error { return nil }

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(" {")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	b.WriteString("}")
	return b.String()
}
