package workflow

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os/exec"
)

// ShellExecutable runs argv as a subprocess, per task index exposed to the
// command as the environment variable DAGFLOW_TASK_INDEX. It is the
// concrete Executable the Slurm backend ships to compute nodes, since an
// arbitrary Go closure cannot be serialized.
type ShellExecutable struct {
	Argv []string
	Dir  string
}

// Invoke implements Executable.
func (s ShellExecutable) Invoke(ctx context.Context, index int) error {
	if len(s.Argv) == 0 {
		return fmt.Errorf("workflow: ShellExecutable has empty Argv")
	}
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = append(cmd.Environ(), fmt.Sprintf("DAGFLOW_TASK_INDEX=%d", index))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("shell executable %v: %w: %s", s.Argv, err, out)
	}
	return nil
}

// ScriptExecutable runs Body as an inline script through Interpreter's -c
// flag (e.g. "/bin/bash", "/usr/bin/python3").
type ScriptExecutable struct {
	Interpreter string
	Body        string
}

// Invoke implements Executable.
func (s ScriptExecutable) Invoke(ctx context.Context, index int) error {
	cmd := exec.CommandContext(ctx, s.Interpreter, "-c", s.Body)
	cmd.Env = append(cmd.Environ(), fmt.Sprintf("DAGFLOW_TASK_INDEX=%d", index))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("script executable: %w: %s", err, out)
	}
	return nil
}

func init() {
	gob.Register(ShellExecutable{})
	gob.Register(ScriptExecutable{})
}

// EncodeExecutable gob-encodes body for shipping to a Slurm compute node.
// Only registered concrete types (ShellExecutable, ScriptExecutable) can be
// encoded; an in-process closure (ExecutableFunc) cannot cross the process
// boundary and EncodeExecutable rejects it with CallableSerializationError.
func EncodeExecutable(jobID string, body Executable) ([]byte, error) {
	if _, ok := body.(ExecutableFunc); ok {
		return nil, &CallableSerializationError{JobID: jobID, Cause: fmt.Errorf("in-process function bodies cannot run on the Slurm backend; use ShellExecutable or ScriptExecutable")}
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(&body); err != nil {
		return nil, &CallableSerializationError{JobID: jobID, Cause: err}
	}
	return buf.Bytes(), nil
}

// DecodeExecutable reverses EncodeExecutable. Used by the dagflow worker
// entrypoint invoked from inside a Slurm job step.
func DecodeExecutable(data []byte) (Executable, error) {
	var body Executable
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("workflow: decode executable: %w", err)
	}
	return body, nil
}
