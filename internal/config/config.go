package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/nishad/mgtk/internal/paths"
	"gopkg.in/yaml.v3"
)

// Config represents the mgtk configuration
type Config struct {
	Endpoints Endpoints      `yaml:"endpoints"`
	HTTP      HTTPConfig     `yaml:"http"`
	Download  DownloadConfig `yaml:"download"`
	Catalog   CatalogConfig  `yaml:"catalog"`
}

// Endpoints holds the base URLs of the remote services
type Endpoints struct {
	APIBase         string `yaml:"api_base"`          // MGnify API root
	SequenceSearch  string `yaml:"sequence_search"`   // phmmer POST endpoint
	ENAPortalSearch string `yaml:"ena_portal_search"` // ENA portal search API
	ENABrowserXML   string `yaml:"ena_browser_xml"`   // ENA browser XML view
}

// HTTPConfig contains client settings shared by every tool
type HTTPConfig struct {
	Retries      int               `yaml:"retries"`
	RetryWait    time.Duration     `yaml:"retry_wait"`
	RetryMaxWait time.Duration     `yaml:"retry_max_wait"`
	Timeout      time.Duration     `yaml:"timeout"` // 0 means no timeout
	UserAgent    string            `yaml:"user_agent"`
	Headers      map[string]string `yaml:"headers"`
}

// DownloadConfig contains bulk download settings
type DownloadConfig struct {
	PageSize  int    `yaml:"page_size"`
	OutputDir string `yaml:"output_dir"`
}

// CatalogConfig controls the optional SQLite catalog of stored files
type CatalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Endpoints: Endpoints{
			APIBase:         "https://www.ebi.ac.uk/metagenomics/api/latest",
			SequenceSearch:  "https://www.ebi.ac.uk/metagenomics/sequence-search/search/phmmer",
			ENAPortalSearch: "https://www.ebi.ac.uk/ena/portal/api/search",
			ENABrowserXML:   "https://www.ebi.ac.uk/ena/browser/api/xml",
		},
		HTTP: HTTPConfig{
			Retries:      3,
			RetryWait:    500 * time.Millisecond,
			RetryMaxWait: 10 * time.Second,
			UserAgent:    "mgtk",
		},
		Download: DownloadConfig{
			PageSize:  25,
			OutputDir: ".",
		},
		Catalog: CatalogConfig{
			Enabled: false,
			Path:    paths.GetCatalogPath(),
		},
	}
}

// Load loads configuration from a file, then applies .env and environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := LoadEnvFiles(".env", paths.GetEnvFilePath()); err != nil {
		return nil, err
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	config.Download.OutputDir = expandPath(config.Download.OutputDir)
	config.Catalog.Path = expandPath(config.Catalog.Path)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvFiles loads the dotenv files that exist. Variables already set in
// the environment win.
func LoadEnvFiles(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	overrides := []struct {
		name   string
		target *string
	}{
		{"MGTK_API_BASE", &c.Endpoints.APIBase},
		{"MGTK_SEQUENCE_SEARCH_URL", &c.Endpoints.SequenceSearch},
		{"MGTK_ENA_PORTAL_URL", &c.Endpoints.ENAPortalSearch},
		{"MGTK_ENA_XML_URL", &c.Endpoints.ENABrowserXML},
		{"MGTK_OUTPUT_DIR", &c.Download.OutputDir},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv("MGTK_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MGTK_RETRIES %q: %w", v, err)
		}
		c.HTTP.Retries = n
	}
	if v := os.Getenv("MGTK_CATALOG_PATH"); v != "" {
		c.Catalog.Path = v
		c.Catalog.Enabled = true
	}
	return nil
}

// Validate checks the values the tools rely on
func (c *Config) Validate() error {
	if c.Endpoints.APIBase == "" || c.Endpoints.SequenceSearch == "" ||
		c.Endpoints.ENAPortalSearch == "" || c.Endpoints.ENABrowserXML == "" {
		return fmt.Errorf("all endpoints must be set")
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries must be >= 0, got %d", c.HTTP.Retries)
	}
	if c.Download.PageSize <= 0 {
		return fmt.Errorf("download.page_size must be > 0, got %d", c.Download.PageSize)
	}
	if c.Catalog.Enabled && c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required when the catalog is enabled")
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if path := os.Getenv("MGTK_CONFIG"); path != "" {
		return path
	}

	if _, err := os.Stat("mgtk.yaml"); err == nil {
		return "mgtk.yaml"
	}

	return filepath.Join(paths.GetPaths().ConfigDir, "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}

	return path
}
