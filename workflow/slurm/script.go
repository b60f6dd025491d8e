package slurm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// resourceDirectives maps the well-known Resources keys the core leaves
// uninterpreted onto their #SBATCH flag. Keys not listed here are not
// written to the script.
var resourceDirectives = map[string]string{
	"cpus":      "--cpus-per-task",
	"mem":       "--mem",
	"time":      "--time",
	"partition": "--partition",
	"gpus":      "--gres=gpu",
	"qos":       "--qos",
}

// renderScript writes an sbatch script for job to workDir and returns its
// path. bodyPath is the file holding the gob-encoded callable; activeArray
// is nil for a scalar job or the sorted list of non-dropped indices for an
// array job.
func renderScript(workDir string, job JobSpec, bodyPath string, activeArray []int, dependency string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/bash\n#SBATCH --job-name=%s\n", job.ID)

	keys := make([]string, 0, len(job.Resources))
	for k := range job.Resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if flag, ok := resourceDirectives[k]; ok {
			fmt.Fprintf(&b, "#SBATCH %s=%s\n", flag, job.Resources[k])
		}
	}

	if job.ArraySize > 1 {
		fmt.Fprintf(&b, "#SBATCH --array=%s", arrayRange(activeArray, job.ArraySize))
		if job.ArrayThrottle > 0 {
			fmt.Fprintf(&b, "%%%d", job.ArrayThrottle)
		}
		b.WriteString("\n")
	}
	if dependency != "" {
		fmt.Fprintf(&b, "#SBATCH --dependency=%s\n", dependency)
	}
	fmt.Fprintf(&b, "#SBATCH --output=%s\n\n", filepath.Join(workDir, job.ID+"-%A_%a.out"))

	if job.Skipped {
		fmt.Fprintf(&b, "echo dagflow: job %s marked skipped, synthesizing success\nexit 0\n", job.ID)
	} else {
		index := "${SLURM_ARRAY_TASK_ID:--1}"
		fmt.Fprintf(&b, "exec dagflow-worker run --job=%s --index=%s --body=%s\n", job.ID, index, bodyPath)
	}

	path := filepath.Join(workDir, job.ID+".sbatch")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		return "", fmt.Errorf("slurm: write script %s: %w", path, err)
	}
	return path, nil
}

// arrayRange renders Slurm's "0,2,5-7" array index syntax for the subset of
// [0, size) present in active (sorted ascending). A nil active means every
// index in [0, size) is included.
func arrayRange(active []int, size int) string {
	if active == nil {
		active = make([]int, size)
		for i := range active {
			active[i] = i
		}
	}
	if len(active) == 0 {
		return "0" // Slurm requires a non-empty spec; caller should skip submission instead
	}
	sort.Ints(active)
	var parts []string
	start := active[0]
	prev := active[0]
	flush := func(end int) {
		if start == end {
			parts = append(parts, fmt.Sprintf("%d", start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, idx := range active[1:] {
		if idx == prev+1 {
			prev = idx
			continue
		}
		flush(prev)
		start, prev = idx, idx
	}
	flush(prev)
	return strings.Join(parts, ",")
}
