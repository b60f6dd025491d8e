package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// LogEmitter writes structured log output to a writer, one event per line,
// in either a human-readable key=value form or JSON-lines.
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
	color    bool
}

// NewLogEmitter creates a LogEmitter. jsonMode selects JSON-lines output;
// otherwise a terse text form is used. When writer is a terminal, the text
// form is lightly colorized for FAILED/CANCELLED outcomes.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	color := false
	if f, ok := writer.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode, color: color}
}

func (e *LogEmitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.jsonMode {
		b, err := json.Marshal(ev)
		if err != nil {
			fmt.Fprintf(e.writer, "emit: marshal error: %v\n", err)
			return
		}
		fmt.Fprintln(e.writer, string(b))
		return
	}
	line := fmt.Sprintf("[%s] run=%s job=%s idx=%d", ev.Msg, ev.RunID, ev.JobID, ev.Index)
	if e.color {
		if outcome, _ := ev.Meta["outcome"].(string); outcome == "FAILED" || outcome == "CANCELLED" {
			line = "\x1b[31m" + line + "\x1b[0m"
		}
	}
	fmt.Fprintln(e.writer, line)
}

func (e *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, ev := range events {
		e.Emit(ev)
	}
	return nil
}

func (e *LogEmitter) Flush(context.Context) error { return nil }
