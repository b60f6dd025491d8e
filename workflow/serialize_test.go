package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestEncodeDecodeShellExecutableRoundTrips(t *testing.T) {
	want := ShellExecutable{Argv: []string{"/bin/echo", "hi"}, Dir: "/tmp"}
	data, err := EncodeExecutable("job1", want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeExecutable(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	se, ok := got.(ShellExecutable)
	if !ok {
		t.Fatalf("decoded to %T, want ShellExecutable", got)
	}
	if se.Dir != want.Dir || len(se.Argv) != len(want.Argv) || se.Argv[0] != want.Argv[0] {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", se, want)
	}
}

func TestEncodeExecutableRejectsInProcessFunc(t *testing.T) {
	fn := ExecutableFunc(func(ctx context.Context, i int) error { return nil })
	_, err := EncodeExecutable("job1", fn)
	var cse *CallableSerializationError
	if !errors.As(err, &cse) {
		t.Fatalf("expected CallableSerializationError, got %v", err)
	}
}

func TestEncodeDecodeScriptExecutableRoundTrips(t *testing.T) {
	want := ScriptExecutable{Interpreter: "/bin/bash", Body: "echo $DAGFLOW_TASK_INDEX"}
	data, err := EncodeExecutable("job2", want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeExecutable(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	se, ok := got.(ScriptExecutable)
	if !ok {
		t.Fatalf("decoded to %T, want ScriptExecutable", got)
	}
	if se.Interpreter != want.Interpreter || se.Body != want.Body {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", se, want)
	}
}
