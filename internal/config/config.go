// Package config holds the process-wide pkgs.* configuration singleton:
// ignored paths, ecosystem filter, batch/snapshot tuning, store location,
// and logging setup. It is loaded once per process via Initialize and reset
// via Reset in tests.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Should be called
// once at process startup (cmd/git-pkgs's PersistentPreRun).
//
// Precedence: GITPKGS_* env vars > project .git-pkgs.yaml > defaults.
// The project file is located by walking up from cwd, mirroring how git
// itself finds .git — this lets subcommands run from any subdirectory of
// the repository.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".git-pkgs.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	v.SetEnvPrefix("GITPKGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("pkgs.ignoredDirs", []string{".git", "node_modules", "vendor", ".bundle"})
	v.SetDefault("pkgs.ignoredFiles", []string{})
	v.SetDefault("pkgs.ecosystems", []string{})
	v.SetDefault("pkgs.batchSize", 500)
	v.SetDefault("pkgs.snapshotInterval", 50)
	v.SetDefault("pkgs.dbPath", "")
	v.SetDefault("pkgs.logFile", "")
	v.SetDefault("pkgs.logLevel", "info")
	v.SetDefault("pkgs.parserPlugins", []string{})
	v.SetDefault("pkgs.bulkWrite", false)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// Reset clears the singleton. Tests call this between cases that need
// independent configuration (e.g. a custom pkgs.batchSize) without the
// state of one test leaking into the next.
func Reset() {
	v = nil
}

// DBPath returns the store file location: pkgs.dbPath if configured,
// otherwise <gitDir>/pkgs.sqlite3 (§6).
func DBPath(gitDir string) string {
	if override := GetString("pkgs.dbPath"); override != "" {
		return override
	}
	return filepath.Join(gitDir, "pkgs.sqlite3")
}

// BatchSize returns pkgs.batchSize, defaulting to 500 if unset or non-positive.
func BatchSize() int {
	n := GetInt("pkgs.batchSize")
	if n <= 0 {
		return 500
	}
	return n
}

// SnapshotInterval returns pkgs.snapshotInterval, defaulting to 50 if unset
// or non-positive.
func SnapshotInterval() int {
	n := GetInt("pkgs.snapshotInterval")
	if n <= 0 {
		return 50
	}
	return n
}

// IgnoredDirs returns the configured directory-prefix deny list.
func IgnoredDirs() []string {
	return GetStringSlice("pkgs.ignoredDirs")
}

// IgnoredFiles returns the configured extra file-glob deny list.
func IgnoredFiles() []string {
	return GetStringSlice("pkgs.ignoredFiles")
}

// Ecosystems returns the ecosystem allow list, lowercased. An empty list
// means "no filter": every recognized ecosystem is indexed.
func Ecosystems() []string {
	raw := GetStringSlice("pkgs.ecosystems")
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, len(raw))
	for i, e := range raw {
		out[i] = strings.ToLower(e)
	}
	return out
}

// EcosystemAllowed reports whether ecosystem passes the pkgs.ecosystems
// filter (case-insensitive). An empty filter allows everything.
func EcosystemAllowed(ecosystem string) bool {
	allow := Ecosystems()
	if len(allow) == 0 {
		return true
	}
	lower := strings.ToLower(ecosystem)
	for _, e := range allow {
		if e == lower {
			return true
		}
	}
	return false
}

// ParserPlugins returns configured WASM ManifestParser plugin paths.
func ParserPlugins() []string {
	return GetStringSlice("pkgs.parserPlugins")
}

// BulkWrite reports whether pkgs.bulkWrite forces bulk-write durability
// mode (relaxed fsync) for the next init/update.
func BulkWrite() bool {
	return GetBool("pkgs.bulkWrite")
}

// LogFile returns the configured rotating-log path, or "" for stderr only.
func LogFile() string {
	return GetString("pkgs.logFile")
}

// LogLevel returns the configured slog level string (debug/info/warn/error).
func LogLevel() string {
	level := GetString("pkgs.logLevel")
	if level == "" {
		return "info"
	}
	return level
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice retrieves a string slice configuration value.
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	return v.GetStringSlice(key)
}

// Set overrides a configuration value, mainly for tests and flag wiring.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns every configuration setting as a nested map.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
