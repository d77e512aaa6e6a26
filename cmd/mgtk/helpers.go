package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/config"
	"github.com/nishad/mgtk/internal/httpclient"
	"github.com/nishad/mgtk/internal/logging"
)

// Color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// printer writes user-facing messages. Diagnostics go through the logger.
type printer struct {
	out   io.Writer
	err   io.Writer
	color bool
	quiet bool
}

func newPrinter(cmd *cobra.Command, g *globalOptions) *printer {
	out := cmd.OutOrStdout()
	return &printer{
		out:   out,
		err:   cmd.ErrOrStderr(),
		color: !g.noColor && isTerminal(out) && os.Getenv("NO_COLOR") == "",
		quiet: g.quiet,
	}
}

// Check if output is to terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Apply color if terminal output and color enabled
func (p *printer) colorize(color, text string) string {
	if p.color {
		return color + text + colorReset
	}
	return text
}

func (p *printer) errorf(format string, args ...interface{}) {
	fmt.Fprintf(p.err, "%s %s\n", p.colorize(colorRed, "✗"), fmt.Sprintf(format, args...))
}

func (p *printer) success(format string, args ...interface{}) {
	if !p.quiet {
		fmt.Fprintf(p.out, "%s %s\n", p.colorize(colorGreen, "✓"), fmt.Sprintf(format, args...))
	}
}

func (p *printer) info(format string, args ...interface{}) {
	if !p.quiet {
		fmt.Fprintln(p.out, p.colorize(colorCyan, fmt.Sprintf(format, args...)))
	}
}

func (p *printer) warning(format string, args ...interface{}) {
	fmt.Fprintf(p.err, "%s %s\n", p.colorize(colorYellow, "⚠"), fmt.Sprintf(format, args...))
}

// app is what every tool command needs: the loaded configuration, a logger
// and the shared HTTP client.
type app struct {
	cfg  *config.Config
	log  *zap.Logger
	http *httpclient.Client
	p    *printer
}

func loadConfig(g *globalOptions) (*config.Config, string, error) {
	path := g.configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load config: %w", err)
	}
	if g.catalogPath != "" {
		cfg.Catalog.Enabled = true
		cfg.Catalog.Path = g.catalogPath
	}
	return cfg, path, nil
}

func newApp(cmd *cobra.Command, g *globalOptions) (*app, error) {
	cfg, _, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Level(g.debug, g.verbose, g.quiet), g.noColor)
	return &app{
		cfg:  cfg,
		log:  log,
		http: httpclient.New(cfg.HTTP, log),
		p:    newPrinter(cmd, g),
	}, nil
}

// formatSize formats bytes as human-readable string
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1f seconds", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
