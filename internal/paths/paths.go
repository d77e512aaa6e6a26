package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "mgtk"

type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// GetPaths returns all base paths respecting environment variables
func GetPaths() Paths {
	return Paths{
		ConfigDir: getDir("MGTK_CONFIG_HOME", "XDG_CONFIG_HOME", ".config"),
		DataDir:   getDir("MGTK_DATA_HOME", "XDG_DATA_HOME", ".local/share"),
		CacheDir:  getDir("MGTK_CACHE_HOME", "XDG_CACHE_HOME", ".cache"),
	}
}

func getDir(appEnv, xdgEnv, defaultBase string) string {
	if dir := os.Getenv(appEnv); dir != "" {
		return dir
	}

	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// GetCatalogPath returns the default location of the download catalog
func GetCatalogPath() string {
	if path := os.Getenv("MGTK_CATALOG_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().DataDir, "catalog.db")
}

// GetEnvFilePath returns the dotenv file read next to the config file
func GetEnvFilePath() string {
	return filepath.Join(GetPaths().ConfigDir, ".env")
}

// EnsureDirectories creates all necessary directories
func EnsureDirectories() error {
	p := GetPaths()
	for _, dir := range []string{p.ConfigDir, p.DataDir, p.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
