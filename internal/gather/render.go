package gather

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const banner = "======================================================================"
const rule = "----------------------------------------------------------------------"

// langByExt maps file extensions to fenced-block language tags. Unknown
// extensions render with a bare fence.
var langByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".mts":   "typescript",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".java":  "java",
	".kt":    "kotlin",
	".swift": "swift",
	".php":   "php",
	".pl":    "perl",
	".sh":    "bash",
	".bash":  "bash",
	".zsh":   "bash",
	".fish":  "fish",
	".ps1":   "powershell",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".md":    "markdown",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".xml":   "xml",
	".proto": "protobuf",
	".tf":    "hcl",
	".lua":   "lua",
	".ex":    "elixir",
	".exs":   "elixir",
	".erl":   "erlang",
	".hs":    "haskell",
	".scala": "scala",
	".zig":   "zig",
	".vim":   "vim",
}

// Renderer turns gathered results into the corpus document. The zero value
// stamps real timestamps; tests pin Now.
type Renderer struct {
	Now func() time.Time
}

// Render emits one chunk's markdown document: banner, header, manifest
// table, corpus. The closing banner is identical across chunks; only the
// header carries chunk N/M.
func (r *Renderer) Render(plan *Plan, chunkNum, chunkTotal int, results []Result, warnings []string) string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	var total int
	for i := range results {
		total += results[i].Size
	}

	var b strings.Builder
	b.WriteString(banner + "\n")
	b.WriteString("BABEL CONTEXT\n")
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "operation: %s\n", plan.Operation)
	if plan.Intent != "" {
		fmt.Fprintf(&b, "intent:    %s\n", plan.Intent)
	}
	fmt.Fprintf(&b, "chunk:     %d/%d\n", chunkNum, chunkTotal)
	fmt.Fprintf(&b, "generated: %s\n", now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "size:      %s\n", humanSize(int64(total)))
	if len(warnings) > 0 {
		fmt.Fprintf(&b, "warnings:  %s\n", strings.Join(warnings, "; "))
	}
	b.WriteString(rule + "\n")

	b.WriteString("MANIFEST\n")
	fmt.Fprintf(&b, "%4s | %-6s | %-40s | %9s | %s\n", "#", "type", "source", "size", "status")
	for i := range results {
		res := &results[i]
		status := "ok"
		size := humanSize(int64(res.Size))
		if !res.OK() {
			status = "ERROR"
			size = "-"
		}
		fmt.Fprintf(&b, "%4d | %-6s | %-40s | %9s | %s\n",
			i+1, res.Source.Type, truncateRef(res.Source.Ref, 40), size, status)
	}
	b.WriteString(rule + "\n")

	b.WriteString("CORPUS\n")
	for i := range results {
		res := &results[i]
		b.WriteString("\n")
		fmt.Fprintf(&b, "[%d/%d] %s: %s\n", i+1, len(results), strings.ToUpper(string(res.Source.Type)), res.Source.Ref)
		if !res.OK() {
			fmt.Fprintf(&b, "ERROR: %s\n", res.Error)
			continue
		}
		fmt.Fprintf(&b, "lines: %d, size: %d bytes, time: %s\n", res.Lines, res.Size, res.Duration.Round(time.Millisecond))
		fmt.Fprintf(&b, "```%s\n", fenceLang(res.Source))
		b.WriteString(res.Content)
		if !strings.HasSuffix(res.Content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}

	b.WriteString("\n" + banner + "\n")
	return b.String()
}

// RenderJSON is the machine-readable alternative: the result records as a
// JSON array.
func (r *Renderer) RenderJSON(results []Result) ([]byte, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal gather results: %w", err)
	}
	return data, nil
}

// fenceLang picks the code-block language. Files and symbols key on the
// path extension; bash output is text, grep output is text.
func fenceLang(s Source) string {
	switch s.Type {
	case SourceFile:
		return langByExt[strings.ToLower(filepath.Ext(s.Path))]
	case SourceSymbol:
		return langByExt[strings.ToLower(filepath.Ext(s.Ref))]
	case SourceBash:
		return "text"
	}
	return ""
}

func truncateRef(ref string, max int) string {
	if len(ref) <= max {
		return ref
	}
	return ref[:max-3] + "..."
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
