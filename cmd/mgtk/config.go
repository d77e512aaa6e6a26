package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nishad/mgtk/internal/config"
	"github.com/nishad/mgtk/internal/paths"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mgtk configuration",
		Long:  `Manage mgtk configuration including endpoints, retry behaviour and paths.`,
	}

	configPathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "Show all active paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigPaths(cmd, g)
		},
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, g)
		},
	}

	var force bool
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration",
		Long: `Create a default configuration file at ~/.config/mgtk/config.yaml.
If a config file already exists, use --force to overwrite it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd, g)
			configPath := filepath.Join(paths.GetPaths().ConfigDir, "config.yaml")

			if _, err := os.Stat(configPath); err == nil && !force {
				p.warning("Configuration already exists at %s", configPath)
				fmt.Fprintln(p.out, "Use --force to overwrite")
				return nil
			}
			if err := paths.EnsureDirectories(); err != nil {
				return err
			}
			if err := config.DefaultConfig().Save(configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			p.success("Configuration created at %s", configPath)
			return nil
		},
	}
	configInitCmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	configCmd.AddCommand(configPathsCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	return configCmd
}

func runConfigPaths(cmd *cobra.Command, g *globalOptions) error {
	p := newPrinter(cmd, g)
	dirs := paths.GetPaths()

	p.info("mgtk paths")
	fmt.Fprintln(p.out, p.colorize(colorGray, "────────────────────────────────────────"))
	fmt.Fprintf(p.out, "  Config:   %s\n", p.colorize(colorCyan, dirs.ConfigDir))
	fmt.Fprintf(p.out, "  Data:     %s\n", p.colorize(colorCyan, dirs.DataDir))
	fmt.Fprintf(p.out, "  Cache:    %s\n", p.colorize(colorCyan, dirs.CacheDir))
	fmt.Fprintf(p.out, "  Catalog:  %s\n", p.colorize(colorCyan, paths.GetCatalogPath()))
	fmt.Fprintf(p.out, "  Env file: %s\n", p.colorize(colorCyan, paths.GetEnvFilePath()))

	var set []string
	for _, name := range []string{
		"MGTK_CONFIG", "MGTK_CONFIG_HOME", "MGTK_DATA_HOME", "MGTK_CACHE_HOME",
		"MGTK_API_BASE", "MGTK_SEQUENCE_SEARCH_URL", "MGTK_ENA_PORTAL_URL", "MGTK_ENA_XML_URL",
		"MGTK_OUTPUT_DIR", "MGTK_RETRIES", "MGTK_CATALOG_PATH",
	} {
		if v := os.Getenv(name); v != "" {
			set = append(set, fmt.Sprintf("  %s = %s", p.colorize(colorYellow, name), p.colorize(colorCyan, v)))
		}
	}
	if len(set) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, p.colorize(colorBold, "Environment Variables:"))
		fmt.Fprintln(p.out, strings.Join(set, "\n"))
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, g *globalOptions) error {
	cfg, configPath, err := loadConfig(g)
	if err != nil {
		return err
	}
	p := newPrinter(cmd, g)

	p.info("Configuration")
	fmt.Fprintln(p.out, p.colorize(colorGray, "────────────────────────────────────────"))
	fmt.Fprintf(p.out, "%s %s\n", p.colorize(colorBold, "Config File:"), configPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprintln(p.out, p.colorize(colorYellow, "  (using defaults - no config file found)"))
	}
	fmt.Fprintln(p.out)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}

	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		switch {
		case strings.HasSuffix(line, ":") && !strings.Contains(line, " "):
			fmt.Fprintln(p.out, p.colorize(colorBold, line))
		case strings.Contains(line, ": "):
			parts := strings.SplitN(line, ": ", 2)
			indent := len(line) - len(strings.TrimLeft(line, " "))
			fmt.Fprintf(p.out, "%s%s: %s\n",
				strings.Repeat(" ", indent),
				p.colorize(colorCyan, strings.TrimSpace(parts[0])),
				p.colorize(colorGreen, parts[1]))
		default:
			fmt.Fprintln(p.out, line)
		}
	}
	return nil
}
