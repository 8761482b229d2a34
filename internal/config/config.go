// Package config loads babel's layered configuration.
//
// Precedence, high to low: explicit Set calls; the project's
// .babel/config.yaml; the user's ~/.babel/config.yaml; BABEL_* environment
// variables; built-in defaults. Note that files outrank environment variables:
// a project that pins io-workers in config.yaml keeps that value even when a
// parent shell exports BABEL_IO_WORKERS.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// BabelDirName is the per-project state directory.
const BabelDirName = ".babel"

var (
	mu sync.RWMutex
	v  *viper.Viper
)

// envBindings maps config keys to the environment variables that may supply
// them. Applied as a layer above defaults and below config files.
var envBindings = map[string]string{
	"llm.active":          "BABEL_LLM_ACTIVE",
	"llm.local.provider":  "BABEL_LLM_LOCAL_PROVIDER",
	"llm.local.model":     "BABEL_LLM_LOCAL_MODEL",
	"llm.local.base-url":  "BABEL_LLM_LOCAL_BASE_URL",
	"llm.remote.provider": "BABEL_LLM_REMOTE_PROVIDER",
	"llm.remote.model":    "BABEL_LLM_REMOTE_MODEL",
	"llm.remote.key-env":  "BABEL_LLM_REMOTE_KEY_ENV",
	"parallel.enabled":    "BABEL_PARALLEL_ENABLED",
	"io-workers":          "BABEL_IO_WORKERS",
	"cpu-workers":         "BABEL_CPU_WORKERS",
	"llm-concurrent":      "BABEL_LLM_CONCURRENT",
	"llm-rate-limit":      "BABEL_LLM_RATE_LIMIT",
	"task-timeout":        "BABEL_TASK_TIMEOUT",
	"shutdown-timeout":    "BABEL_SHUTDOWN_TIMEOUT",
	"fallback-sequential": "BABEL_FALLBACK_SEQUENTIAL",
	"project-path":        "BABEL_PROJECT_PATH",
}

// Initialize builds the layered configuration. Call once at startup; safe to
// call again in tests (it rebuilds from scratch).
func Initialize() error {
	mu.Lock()
	defer mu.Unlock()

	nv := viper.New()
	nv.SetConfigType("yaml")
	setDefaults(nv)

	// Environment layer: above defaults, below files.
	for key, envVar := range envBindings {
		if val := os.Getenv(envVar); val != "" {
			nv.SetDefault(key, val)
		}
	}

	// User config, then project config so the project wins on overlap.
	if home, err := os.UserHomeDir(); err == nil {
		mergeIfExists(nv, filepath.Join(home, BabelDirName, "config.yaml"))
	}
	if root, err := FindProjectRoot(startDir()); err == nil {
		mergeIfExists(nv, filepath.Join(root, BabelDirName, "config.yaml"))
	}

	v = nv
	return nil
}

func startDir() string {
	if p := os.Getenv("BABEL_PROJECT_PATH"); p != "" {
		return p
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func mergeIfExists(nv *viper.Viper, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	nv.SetConfigFile(path)
	// MergeInConfig layers the file over what is already set; later merges win.
	_ = nv.MergeInConfig()
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault("parallel.enabled", true)
	nv.SetDefault("io-workers", DefaultIOWorkers)
	nv.SetDefault("cpu-workers", defaultCPUWorkers())
	nv.SetDefault("llm-concurrent", DefaultLLMConcurrent)
	nv.SetDefault("llm-rate-limit", DefaultLLMRateLimit)
	nv.SetDefault("task-timeout", "60s")
	nv.SetDefault("shutdown-timeout", "10s")
	nv.SetDefault("fallback-sequential", true)
	nv.SetDefault("project-path", "")

	nv.SetDefault("llm.active", "auto")
	nv.SetDefault("llm.local.provider", "ollama")
	nv.SetDefault("llm.local.model", "llama3.2")
	nv.SetDefault("llm.local.base-url", "http://localhost:11434")
	nv.SetDefault("llm.remote.provider", "anthropic")
	nv.SetDefault("llm.remote.model", "claude-sonnet-4-5")
	nv.SetDefault("llm.remote.key-env", "ANTHROPIC_API_KEY")

	nv.SetDefault("gather.size-limit", 64*1024)
	nv.SetDefault("log.fsync", false)
	nv.SetDefault("symbols.max-file-size", 1024*1024)
	nv.SetDefault("watch.debounce", "500ms")
}

// Orchestrator sizing defaults.
const (
	DefaultIOWorkers     = 4
	DefaultLLMConcurrent = 3
	DefaultLLMRateLimit  = 10.0
)

func defaultCPUWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

func active() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()
	if v == nil {
		nv := viper.New()
		setDefaults(nv)
		return nv
	}
	return v
}

// Set applies an explicit override, the highest-precedence layer.
func Set(key string, value any) {
	mu.Lock()
	defer mu.Unlock()
	if v == nil {
		v = viper.New()
		setDefaults(v)
	}
	v.Set(key, value)
}

// GetString returns the string value for key.
func GetString(key string) string { return active().GetString(key) }

// GetInt returns the int value for key.
func GetInt(key string) int { return active().GetInt(key) }

// GetBool returns the bool value for key.
func GetBool(key string) bool { return active().GetBool(key) }

// GetFloat returns the float value for key.
func GetFloat(key string) float64 { return active().GetFloat64(key) }

// GetDuration returns the duration value for key.
func GetDuration(key string) time.Duration { return active().GetDuration(key) }

// FindProjectRoot walks up from start looking for a .babel directory and
// returns the directory containing it.
func FindProjectRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		if fi, err := os.Stat(filepath.Join(dir, BabelDirName)); err == nil && fi.IsDir() {
			return dir, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return "", fmt.Errorf("no %s directory found above %s (run 'babel init' first)", BabelDirName, start)
}

// Settings is an immutable snapshot of everything the core subsystems read.
// Workspaces pass a Settings through their dependencies instead of reaching
// for the package-level accessors; tests construct one directly.
type Settings struct {
	ProjectPath string

	Parallel ParallelSettings
	LLM      LLMSettings

	GatherSizeLimit   int
	LogFsync          bool
	SymbolMaxFileSize int64
	WatchDebounce     time.Duration
}

// ParallelSettings sizes the orchestrator.
type ParallelSettings struct {
	Enabled            bool
	IOWorkers          int
	CPUWorkers         int
	LLMConcurrent      int
	LLMRateLimit       float64
	TaskTimeout        time.Duration
	ShutdownTimeout    time.Duration
	FallbackSequential bool
}

// LLMSettings selects the provider configuration.
type LLMSettings struct {
	// Active is local, remote, or auto. In auto the remote provider wins
	// when its API key env var is set, otherwise local.
	Active string
	Local  ProviderSettings
	Remote ProviderSettings
}

// ProviderSettings configures one provider endpoint.
type ProviderSettings struct {
	Provider string
	Model    string
	BaseURL  string
	KeyEnv   string
}

// Snapshot materializes the current layered configuration.
func Snapshot() Settings {
	return snapshotFrom(active())
}

// Defaults returns the built-in settings without touching the process
// environment or any config file. Tests start here.
func Defaults() Settings {
	nv := viper.New()
	setDefaults(nv)
	return snapshotFrom(nv)
}

func snapshotFrom(av *viper.Viper) Settings {
	return Settings{
		ProjectPath: av.GetString("project-path"),
		Parallel: ParallelSettings{
			Enabled:            av.GetBool("parallel.enabled"),
			IOWorkers:          clampMin(av.GetInt("io-workers"), 1),
			CPUWorkers:         clampMin(av.GetInt("cpu-workers"), 1),
			LLMConcurrent:      clampMin(av.GetInt("llm-concurrent"), 1),
			LLMRateLimit:       av.GetFloat64("llm-rate-limit"),
			TaskTimeout:        durationOr(av, "task-timeout", 60*time.Second),
			ShutdownTimeout:    durationOr(av, "shutdown-timeout", 10*time.Second),
			FallbackSequential: av.GetBool("fallback-sequential"),
		},
		LLM: LLMSettings{
			Active: strings.ToLower(av.GetString("llm.active")),
			Local: ProviderSettings{
				Provider: av.GetString("llm.local.provider"),
				Model:    av.GetString("llm.local.model"),
				BaseURL:  av.GetString("llm.local.base-url"),
			},
			Remote: ProviderSettings{
				Provider: av.GetString("llm.remote.provider"),
				Model:    av.GetString("llm.remote.model"),
				KeyEnv:   av.GetString("llm.remote.key-env"),
			},
		},
		GatherSizeLimit:   av.GetInt("gather.size-limit"),
		LogFsync:          av.GetBool("log.fsync"),
		SymbolMaxFileSize: int64(av.GetInt("symbols.max-file-size")),
		WatchDebounce:     durationOr(av, "watch.debounce", 500*time.Millisecond),
	}
}

func clampMin(n, min int) int {
	if n < min {
		return min
	}
	return n
}

func durationOr(nv *viper.Viper, key string, fallback time.Duration) time.Duration {
	d := nv.GetDuration(key)
	if d <= 0 {
		return fallback
	}
	return d
}
