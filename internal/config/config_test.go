package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, sources, err := Load(dir, "", Config{}, nil)
	require.NoError(t, err, "Load should succeed with no config files present")
	require.Equal(t, DefaultConfig(), cfg, "Load with no config files should return defaults")
	require.Empty(t, sources.Global)
	require.Empty(t, sources.Project)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, ConfigFileName), `{
		// trailing comment and comma are fine, this is JSONC
		"db_path": "/srv/xlease/volumes.db",
	}`)

	cfg, sources, err := Load(dir, "", Config{}, nil)
	require.NoError(t, err, "Load should succeed")
	require.Equal(t, "/srv/xlease/volumes.db", cfg.DBPath, "project config should override the default DBPath")
	require.Equal(t, DefaultConfig().OwnerUser, cfg.OwnerUser, "OwnerUser should be left at its default")
	require.NotEmpty(t, sources.Project, "sources.Project should name the project config path")
}

func TestLoad_CLIOverrideWinsOverProjectConfig(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, ConfigFileName), `{"db_path": "/from/project.db"}`)

	cfg, _, err := Load(dir, "", Config{DBPath: "/from/cli.db"}, nil)
	require.NoError(t, err, "Load should succeed")
	require.Equal(t, "/from/cli.db", cfg.DBPath, "CLI override should win over the project config")
}

func TestLoad_ExplicitConfigPathMustExist(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(dir, "missing.json", Config{}, nil)
	require.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, ConfigFileName), `{not json`)

	_, _, err := Load(dir, "", Config{}, nil)
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestGetGlobalConfigPath_UsesXDGConfigHomeFromEnvSlice(t *testing.T) {
	got := getGlobalConfigPath([]string{"XDG_CONFIG_HOME=/xdg"})
	require.Equal(t, filepath.Join("/xdg", "xlease", "config.json"), got)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "writing %s", path)
}
