package gather

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/babelhq/babel/internal/symbols"
)

var (
	// ErrFileMissing is returned for paths that do not exist.
	ErrFileMissing = errors.New("file does not exist")
	// ErrIsDirectory rejects directories passed to the file primitive.
	ErrIsDirectory = errors.New("path is a directory, not a file")
	// ErrBinaryFile rejects content with null bytes in the probe window.
	ErrBinaryFile = errors.New("binary file")
	// ErrFileTooLarge rejects files over MaxFileSize.
	ErrFileTooLarge = errors.New("file too large to gather")
)

const (
	// MaxFileSize caps what the file primitive will read.
	MaxFileSize = 1 << 20
	// maxBashOutput caps captured subprocess output.
	maxBashOutput = 100 * 1024
	// binaryProbeLen is how far into a file the null-byte probe looks.
	binaryProbeLen = 8000

	grepTimeout        = 30 * time.Second
	defaultBashTimeout = 30 * time.Second
)

// File reads one text file. Missing, directory, binary and oversize paths
// are rejected with typed errors; content that is not valid UTF-8 is re-read
// as latin-1 so legacy files still gather.
func File(path string) (content, absPath string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", abs, fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return "", abs, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", abs, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	if info.Size() > MaxFileSize {
		return "", abs, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, path, info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", abs, fmt.Errorf("read %s: %w", path, err)
	}
	probe := data
	if len(probe) > binaryProbeLen {
		probe = probe[:binaryProbeLen]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return "", abs, fmt.Errorf("%w: %s", ErrBinaryFile, path)
	}
	if !utf8.Valid(data) {
		return latin1String(data), abs, nil
	}
	return string(data), abs, nil
}

// latin1String maps each byte to the code point of the same value, which is
// exactly the latin-1 decode.
func latin1String(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// Grep searches path for pattern, preferring ripgrep and falling back to
// POSIX grep. Exit status 1 means no matches and is success with empty
// output. The search is bounded by a 30 second timeout.
func Grep(ctx context.Context, pattern, path string, maxMatches, contextLines int) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, grepTimeout)
	defer cancel()

	var cmd *exec.Cmd
	if _, err := exec.LookPath("rg"); err == nil {
		args := []string{"--no-heading", "-n"}
		if maxMatches > 0 {
			args = append(args, "-m", strconv.Itoa(maxMatches))
		}
		if contextLines > 0 {
			args = append(args, "-C", strconv.Itoa(contextLines))
		}
		args = append(args, "--", pattern, path)
		cmd = exec.CommandContext(gctx, "rg", args...)
	} else {
		args := []string{"-rn"}
		if maxMatches > 0 {
			args = append(args, "-m", strconv.Itoa(maxMatches))
		}
		if contextLines > 0 {
			args = append(args, "-C", strconv.Itoa(contextLines))
		}
		args = append(args, "--", pattern, path)
		cmd = exec.CommandContext(gctx, "grep", args...)
	}

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		if gctx.Err() != nil {
			return "", fmt.Errorf("grep %q in %s: %w", pattern, path, gctx.Err())
		}
		return "", fmt.Errorf("grep %q in %s: %w", pattern, path, err)
	}
	return string(out), nil
}

// Bash runs a shell command and captures stdout and stderr, stderr behind a
// separator. Output over 100 KB is truncated. A completed run never errors;
// the exit code is returned for the caller to surface. Spawn failures and
// timeouts do error.
func Bash(ctx context.Context, command string, timeout time.Duration, cwd string) (output string, exitCode int, err error) {
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- command comes from the caller's gather plan
	cmd := exec.CommandContext(bctx, "sh", "-c", command)
	if cwd != "" {
		cmd.Dir = cwd
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case bctx.Err() != nil:
			return "", -1, fmt.Errorf("bash %q: %w", command, bctx.Err())
		default:
			return "", -1, fmt.Errorf("bash %q: %w", command, runErr)
		}
	}

	out := stdout.String()
	if s := stderr.String(); s != "" {
		out += "\n--- stderr ---\n" + s
	}
	if len(out) > maxBashOutput {
		out = out[:maxBashOutput] + "\n... (output truncated at 100KB)"
	}
	return out, exitCode, nil
}

// Glob lists files matching a doublestar pattern under base, sorted, with
// their total size.
func Glob(pattern, base string) (files []string, totalSize int64, err error) {
	if base == "" {
		base = "."
	}
	fsys := os.DirFS(base)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("glob %q under %s: %w", pattern, base, err)
	}
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
		totalSize += info.Size()
	}
	sort.Strings(files)
	return files, totalSize, nil
}

// SymbolRange resolves a symbol by name and returns its source range with
// contextLines of surrounding code, prefixed by a metadata header.
func SymbolRange(ix *symbols.Index, root, name string, contextLines int) (string, error) {
	if ix == nil {
		return "", errors.New("symbol index not loaded; run `babel index` first")
	}
	sym, ok := ix.Lookup(name)
	if !ok {
		return "", fmt.Errorf("symbol %q not in index; run `babel index` after changing code", name)
	}
	abs := filepath.Join(root, filepath.FromSlash(sym.FilePath))
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s for symbol %s: %w", sym.FilePath, name, err)
	}

	lines := strings.Split(string(data), "\n")
	start := sym.LineStart - contextLines
	if start < 1 {
		start = 1
	}
	end := sym.LineEnd + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s:%d-%d)\n", sym.Type, sym.QualifiedName, sym.FilePath, sym.LineStart, sym.LineEnd)
	if sym.Signature != "" {
		fmt.Fprintf(&b, "%s\n", sym.Signature)
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(lines[start-1:end], "\n"))
	return b.String(), nil
}
