// Command dagflow-worker runs a single job task inside a Slurm job step. It
// is the program an sbatch script generated by workflow/slurm execs: decode
// the gob-encoded body written alongside the script and invoke it with the
// array index Slurm assigned.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/corvidlabs/dagflow/workflow"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] != "run" {
		fmt.Fprintln(os.Stderr, "usage: dagflow-worker run --job=ID --index=N --body=PATH")
		return 2
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	jobID := fs.String("job", "", "job identifier, for error messages")
	index := fs.String("index", "-1", "array task index, or -1 for a scalar job")
	bodyPath := fs.String("body", "", "path to the gob-encoded Executable")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *bodyPath == "" {
		fmt.Fprintln(os.Stderr, "dagflow-worker: --body is required")
		return 2
	}
	idx, err := strconv.Atoi(*index)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dagflow-worker: invalid --index %q: %v\n", *index, err)
		return 2
	}

	data, err := os.ReadFile(*bodyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dagflow-worker: read body: %v\n", err)
		return 1
	}
	body, err := workflow.DecodeExecutable(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dagflow-worker: decode body for job %s: %v\n", *jobID, err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := body.Invoke(ctx, idx); err != nil {
		fmt.Fprintf(os.Stderr, "dagflow-worker: job %s index %d: %v\n", *jobID, idx, err)
		return 1
	}
	return 0
}
