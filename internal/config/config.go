// Package config loads qc settings from config.yaml, QC_* environment
// variables and command-line overrides through a viper singleton.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigFileName is the config file looked up in each search directory.
const ConfigFileName = "config.yaml"

// EnvPrefix is prepended to upper-cased keys for environment overrides
// (jira.url -> QC_JIRA_URL).
const EnvPrefix = "QC"

var (
	v      *viper.Viper
	vMutex sync.RWMutex
)

// Initialize sets up the viper singleton. An explicit path (from --config or
// $QC_CONFIG) wins; otherwise ./.qc/config.yaml and the user config dir are
// searched. A missing file is not an error: defaults and env still apply.
func Initialize() error {
	return InitializeWithPath(os.Getenv("QC_CONFIG"))
}

// InitializeWithPath is Initialize with an explicit config file path.
func InitializeWithPath(path string) error {
	nv := viper.New()
	nv.SetConfigType("yaml")
	nv.SetEnvPrefix(EnvPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()

	for _, k := range Keys {
		if k.Default != "" {
			nv.SetDefault(k.Key, k.Default)
		}
		if k.EnvVar != "" {
			_ = nv.BindEnv(k.Key, envName(k.Key), k.EnvVar)
		}
	}

	if path != "" {
		nv.SetConfigFile(path)
	} else {
		for _, dir := range SearchDirs() {
			nv.AddConfigPath(dir)
		}
		nv.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	}

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case path == "" && errors.As(err, &notFound):
			// defaults + env only
		case path != "" && errors.Is(err, fs.ErrNotExist):
			// explicit path that does not exist yet; `qc config set` creates it
		default:
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	vMutex.Lock()
	v = nv
	vMutex.Unlock()
	return nil
}

// SearchDirs lists the directories searched for config.yaml, most specific
// first.
func SearchDirs() []string {
	dirs := []string{filepath.Join(".", ".qc")}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "qc"))
	}
	return dirs
}

// ConfigDir returns the directory holding the active config file, or the
// user config dir fallback when no file was loaded.
func ConfigDir() string {
	if used := ConfigFileUsed(); used != "" {
		return filepath.Dir(used)
	}
	dirs := SearchDirs()
	return dirs[len(dirs)-1]
}

// ConfigFileUsed returns the path of the loaded config file ("" if none).
func ConfigFileUsed() string {
	vMutex.RLock()
	defer vMutex.RUnlock()
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString returns a config value, or "" before Initialize.
func GetString(key string) string {
	vMutex.RLock()
	defer vMutex.RUnlock()
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetDuration returns a duration value, or 0 before Initialize.
func GetDuration(key string) time.Duration {
	vMutex.RLock()
	defer vMutex.RUnlock()
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a value for the lifetime of the process (flags, tests).
func Set(key string, value interface{}) {
	vMutex.Lock()
	defer vMutex.Unlock()
	if v == nil {
		v = viper.New()
	}
	v.Set(key, value)
}

// AllSettings returns every known key with its effective value.
func AllSettings() map[string]string {
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		out[k.Key] = GetString(k.Key)
	}
	return out
}

// WatchConfig invokes onChange whenever the loaded config file changes on
// disk. It is a no-op when no file was loaded.
func WatchConfig(onChange func(name string)) {
	vMutex.RLock()
	cur := v
	vMutex.RUnlock()
	if cur == nil || cur.ConfigFileUsed() == "" {
		return
	}
	if _, err := os.Stat(cur.ConfigFileUsed()); err != nil {
		return
	}
	cur.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		onChange(e.Name)
	})
	cur.WatchConfig()
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}
