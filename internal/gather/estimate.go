package gather

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Advisory size estimates per source type. Chunk layout uses these; actual
// output sizes govern nothing but the manifest.
const (
	grepBytesPerMatch = 128
	bashEstimate      = 4096
	globEstimate      = 2048
	symbolEstimate    = 2048
)

// EstimateSizes returns one advisory byte estimate per source: files by
// stat, greps by a cheap pre-count times a per-match constant, everything
// else by a flat default.
func EstimateSizes(ctx context.Context, root string, sources []Source) []int64 {
	out := make([]int64, len(sources))
	for i, s := range sources {
		switch s.Type {
		case SourceFile:
			if info, err := os.Stat(resolvePath(root, s.Path)); err == nil {
				out[i] = info.Size()
			}
		case SourceGrep:
			n := countMatches(ctx, s.Pattern, resolvePath(root, s.Path))
			out[i] = int64(n) * grepBytesPerMatch
		case SourceBash:
			out[i] = bashEstimate
		case SourceGlob:
			out[i] = globEstimate
		case SourceSymbol:
			out[i] = symbolEstimate
		}
	}
	return out
}

// countMatches pre-counts grep hits with rg -c or grep -rc. Failures count
// as zero; estimation never blocks a gather.
func countMatches(ctx context.Context, pattern, path string) int {
	var cmd *exec.Cmd
	if _, err := exec.LookPath("rg"); err == nil {
		cmd = exec.CommandContext(ctx, "rg", "-c", "--", pattern, path)
	} else {
		cmd = exec.CommandContext(ctx, "grep", "-rc", "--", pattern, path)
	}
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return 0
		}
	}

	// Both tools print per-file "path:count" lines (or a bare count for a
	// single file).
	total := 0
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		field := line
		if i := strings.LastIndexByte(line, ':'); i >= 0 {
			field = line[i+1:]
		}
		if n, err := strconv.Atoi(field); err == nil {
			total += n
		}
	}
	return total
}

// resolvePath anchors relative plan paths at the project root.
func resolvePath(root, path string) string {
	if path == "" {
		return root
	}
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}
