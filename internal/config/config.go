// Package config loads xlease's configuration: the path to the managed-
// volume database, and the (owner-user, owner-group) pair the service
// expects to own it.
//
// Precedence, highest wins:
//
//  1. Defaults
//  2. Global config ($XDG_CONFIG_HOME/xlease/config.json, or
//     ~/.config/xlease/config.json)
//  3. Project/explicit config file (.xlease.json, or an explicit path)
//  4. CLI overrides
//
// Config files are JSONC (JSON with comments and trailing commas), parsed
// with [hujson].
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".xlease.json"

// Config holds xlease's configuration.
type Config struct {
	DBPath    string `json:"db_path"`    //nolint:tagliatelle // snake_case for config file
	OwnerUser string `json:"owner_user"` //nolint:tagliatelle
	OwnerGrp  string `json:"owner_group"`
}

// Sources tracks which config files contributed to a loaded [Config].
type Sources struct {
	Global  string
	Project string
}

// DefaultConfig returns xlease's built-in defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:    "/var/lib/xlease/volumes.db",
		OwnerUser: "vdsm",
		OwnerGrp:  "kvm",
	}
}

// getGlobalConfigPath returns $XDG_CONFIG_HOME/xlease/config.json if set,
// otherwise ~/.config/xlease/config.json. Returns "" if neither can be
// determined.
func getGlobalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "xlease", "config.json")
		}
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "xlease", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "xlease", "config.json")
	}

	return ""
}

// Load loads configuration following the precedence documented on the
// package. cliOverrides is applied field-by-field: a zero-value field is
// treated as "not set on the CLI" and left to the lower layers.
func Load(workDir, configPath string, cliOverrides Config, env []string) (Config, Sources, error) {
	cfg := DefaultConfig()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	cfg = mergeConfig(cfg, cliOverrides)

	if err := validateConfig(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func loadGlobalConfig(env []string) (Config, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var (
		cfgFile   string
		mustExist bool
	)

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		if _, err := os.Stat(cfgFile); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
	}

	cfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, cfgFile, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally configurable
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.DBPath != "" {
		base.DBPath = overlay.DBPath
	}

	if overlay.OwnerUser != "" {
		base.OwnerUser = overlay.OwnerUser
	}

	if overlay.OwnerGrp != "" {
		base.OwnerGrp = overlay.OwnerGrp
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.DBPath == "" {
		return ErrDBPathEmpty
	}

	if cfg.OwnerUser == "" || cfg.OwnerGrp == "" {
		return ErrOwnerEmpty
	}

	return nil
}

// Format returns cfg as indented JSON, for --show-config style output.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}

	return string(data), nil
}
