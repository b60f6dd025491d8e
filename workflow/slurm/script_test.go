package slurm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderScriptIncludesResourceDirectivesSortedByKey(t *testing.T) {
	dir := t.TempDir()
	job := JobSpec{
		ID:        "train",
		ArraySize: 1,
		Resources: map[string]string{"mem": "16G", "cpus": "4", "partition": "gpu"},
	}
	path, err := renderScript(dir, job, "", nil, "")
	if err != nil {
		t.Fatalf("renderScript: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	body := string(data)
	cpusIdx := strings.Index(body, "--cpus-per-task")
	memIdx := strings.Index(body, "--mem")
	partIdx := strings.Index(body, "--partition")
	if cpusIdx == -1 || memIdx == -1 || partIdx == -1 {
		t.Fatalf("missing a resource directive:\n%s", body)
	}
	if !(cpusIdx < memIdx && memIdx < partIdx) {
		t.Fatalf("resource directives not sorted by key:\n%s", body)
	}
}

func TestRenderScriptSkippedJobExitsZeroWithoutWorkerInvocation(t *testing.T) {
	dir := t.TempDir()
	job := JobSpec{ID: "pruned", ArraySize: 1, Skipped: true}
	path, err := renderScript(dir, job, "", nil, "")
	if err != nil {
		t.Fatalf("renderScript: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "dagflow-worker") {
		t.Fatalf("a skipped job's script must never invoke the worker binary:\n%s", data)
	}
	if !strings.Contains(string(data), "exit 0") {
		t.Fatalf("a skipped job's script must exit 0:\n%s", data)
	}
}

func TestRenderScriptArrayJobIncludesArrayDirective(t *testing.T) {
	dir := t.TempDir()
	job := JobSpec{ID: "fanout", ArraySize: 4, ArrayThrottle: 2}
	path, err := renderScript(dir, job, filepath.Join(dir, "fanout.body"), []int{0, 1, 3}, "")
	if err != nil {
		t.Fatalf("renderScript: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "--array=0-1,3%2") {
		t.Fatalf("expected array directive with throttle, got:\n%s", data)
	}
}

func TestRenderScriptIncludesDependencyDirective(t *testing.T) {
	dir := t.TempDir()
	job := JobSpec{ID: "c", ArraySize: 1}
	path, err := renderScript(dir, job, "", nil, "afterok:1")
	if err != nil {
		t.Fatalf("renderScript: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "--dependency=afterok:1") {
		t.Fatalf("expected dependency directive, got:\n%s", data)
	}
}
