package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagGroup is a titled set of flags in grouped help output.
type FlagGroup struct {
	Title string
	Names []string
}

// GlobalFlags lists the root persistent flags.
var GlobalFlags = FlagGroup{
	Title: "GLOBAL OPTIONS",
	Names: []string{"help", "debug", "verbose", "quiet", "no-color", "config", "catalog"},
}

// SetupGroupedHelp configures a command to display flags grouped by category.
// Flags not named by any group are listed under OTHER OPTIONS.
func SetupGroupedHelp(cmd *cobra.Command, groups ...FlagGroup) {
	originalHelpFunc := cmd.HelpFunc()
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		if c != cmd {
			originalHelpFunc(c, args)
			return
		}

		// print the usual help without flags first
		var hidden []*pflag.Flag
		c.Flags().VisitAll(func(flag *pflag.Flag) {
			if !flag.Hidden {
				flag.Hidden = true
				hidden = append(hidden, flag)
			}
		})
		originalHelpFunc(c, args)
		for _, flag := range hidden {
			flag.Hidden = false
		}

		out := c.OutOrStdout()
		listed := make(map[string]bool)
		for _, g := range append(groups, GlobalFlags) {
			printFlagGroup(out, c, g, listed)
		}
		var rest []string
		c.Flags().VisitAll(func(flag *pflag.Flag) {
			if !listed[flag.Name] {
				rest = append(rest, flag.Name)
			}
		})
		printFlagGroup(out, c, FlagGroup{Title: "OTHER OPTIONS", Names: rest}, listed)

		fmt.Fprintln(out, "\nEnvironment Variables:")
		fmt.Fprintln(out, "  MGTK_CONFIG              Configuration file path")
		fmt.Fprintln(out, "  MGTK_API_BASE            MGnify API root")
		fmt.Fprintln(out, "  MGTK_SEQUENCE_SEARCH_URL Sequence search endpoint")
		fmt.Fprintln(out, "  MGTK_OUTPUT_DIR          Default output directory")
		fmt.Fprintln(out, "  MGTK_CATALOG_PATH        Record stored files in this SQLite catalog")
		fmt.Fprintln(out, "  NO_COLOR                 Disable colored output")
	})
}

// printFlagGroup prints a group of flags with a header
func printFlagGroup(out io.Writer, cmd *cobra.Command, group FlagGroup, listed map[string]bool) {
	var flags []*pflag.Flag
	for _, name := range group.Names {
		if listed[name] {
			continue
		}
		if flag := cmd.Flags().Lookup(name); flag != nil && !flag.Hidden {
			flags = append(flags, flag)
			listed[name] = true
		}
	}
	if len(flags) == 0 {
		return
	}

	fmt.Fprintf(out, "\n%s:\n", group.Title)
	for _, flag := range flags {
		shorthand := ""
		if flag.Shorthand != "" {
			shorthand = fmt.Sprintf("-%s, ", flag.Shorthand)
		}
		if legacy := LegacyName(flag.Name); legacy != "" {
			shorthand = legacy + ", "
		}

		flagLine := fmt.Sprintf("  %s--%s", shorthand, flag.Name)

		typeStr := ""
		switch flag.Value.Type() {
		case "string":
			if flag.DefValue != "" {
				typeStr = fmt.Sprintf(" string (default %q)", flag.DefValue)
			} else {
				typeStr = " string"
			}
		case "stringSlice":
			typeStr = " strings"
		case "float32", "float64":
			typeStr = fmt.Sprintf(" float (default %s)", flag.DefValue)
		case "bool":
		default:
			if flag.DefValue != "" && flag.DefValue != "[]" {
				typeStr = fmt.Sprintf(" (default %s)", flag.DefValue)
			}
		}

		padding := 50 - len(flagLine) - len(typeStr)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(out, "%s%s%s%s\n", flagLine, typeStr, strings.Repeat(" ", padding), flag.Usage)
	}
}
