package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// SandboxURL is the base URL of the remote sandbox provider API.
	// Empty means no provider is configured; file operations still work
	// against the backup store, but command execution is unavailable.
	SandboxURL string `json:"sandbox_url,omitempty"`

	// SandboxTokenEnv names the environment variable holding the provider
	// API token. Defaults to BURROW_SANDBOX_TOKEN.
	SandboxTokenEnv string `json:"sandbox_token_env,omitempty"`

	// CommandTimeoutSecs bounds a single command execution in a sandbox.
	CommandTimeoutSecs int `json:"command_timeout_secs"`

	// MaxOutputBytes caps command output; longer output is truncated with a
	// marker rather than returned whole.
	MaxOutputBytes int `json:"max_output_bytes"`

	// RestoreConcurrency bounds parallel per-file transfers during sandbox
	// restore and background capture.
	RestoreConcurrency int `json:"restore_concurrency"`

	// SyncIntervalSecs is the period of the background capture loop.
	// 0 disables the periodic loop (explicit triggers still work).
	SyncIntervalSecs int `json:"sync_interval_secs,omitempty"`

	// SyncDebounceMs is the quiet period after a write notification before a
	// capture fires. Successive notifications collapse into one capture.
	SyncDebounceMs int `json:"sync_debounce_ms"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.burrow/exports require either being in this list or
	// AllowUnsafePaths=true. Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks
	// still apply). Use with caution.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// All tools belonging to disabled types are excluded from registration.
	// Known types: "file", "exec", "workspace". Unknown names are logged as warnings.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SandboxTokenEnv:    "BURROW_SANDBOX_TOKEN",
		CommandTimeoutSecs: 60,
		MaxOutputBytes:     50000,
		RestoreConcurrency: 4,
		SyncDebounceMs:     750,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.burrow.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.burrow) and repo
// (.burrow) directories. Repo config is found by walking upward from startDir
// to find the nearest .burrow/config.json. Repo config takes precedence for
// scalar values; arrays are merged (deduplicated). Either or both configs may
// be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .burrow/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".burrow", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// SandboxToken resolves the provider API token from the configured
// environment variable. Empty when unset.
func (c *Config) SandboxToken() string {
	env := c.SandboxTokenEnv
	if env == "" {
		env = "BURROW_SANDBOX_TOKEN"
	}
	return os.Getenv(env)
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.SandboxURL = overlay.SandboxURL
	if result.SandboxURL == "" {
		result.SandboxURL = base.SandboxURL
	}

	result.SandboxTokenEnv = overlay.SandboxTokenEnv
	if result.SandboxTokenEnv == "" {
		result.SandboxTokenEnv = base.SandboxTokenEnv
	}

	result.CommandTimeoutSecs = overlay.CommandTimeoutSecs
	if result.CommandTimeoutSecs == 0 {
		result.CommandTimeoutSecs = base.CommandTimeoutSecs
	}

	result.MaxOutputBytes = overlay.MaxOutputBytes
	if result.MaxOutputBytes == 0 {
		result.MaxOutputBytes = base.MaxOutputBytes
	}

	result.RestoreConcurrency = overlay.RestoreConcurrency
	if result.RestoreConcurrency == 0 {
		result.RestoreConcurrency = base.RestoreConcurrency
	}

	result.SyncIntervalSecs = overlay.SyncIntervalSecs
	if result.SyncIntervalSecs == 0 {
		result.SyncIntervalSecs = base.SyncIntervalSecs
	}

	result.SyncDebounceMs = overlay.SyncDebounceMs
	if result.SyncDebounceMs == 0 {
		result.SyncDebounceMs = base.SyncDebounceMs
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
