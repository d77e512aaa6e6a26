// Package cli holds command-line helpers shared by the mgtk commands.
package cli

import "strings"

type legacyFlag struct {
	short string
	long  string
	// multi flags take several values after one occurrence
	multi bool
	// native aliases are also registered as pflag shorthands
	native bool
}

// legacyFlags are the single-dash names the toolkit has always accepted.
var legacyFlags = []legacyFlag{
	{short: "-a", long: "accession", multi: true, native: true},
	{short: "-seq", long: "sequence", multi: true},
	{short: "-out", long: "output"},
	{short: "-db", long: "database"},
	{short: "-incE", long: "seq-evalue-threshold"},
	{short: "-incdomE", long: "hit-evalue-threshold"},
	{short: "-E", long: "report-seq-evalue-threshold"},
	{short: "-domE", long: "report-hit-evalue-threshold"},
	{short: "-incT", long: "seq-bitscore-threshold"},
	{short: "-incdomT", long: "hit-bitscore-threshold"},
	{short: "-T", long: "report-seq-bitscore-threshold"},
	{short: "-domT", long: "report-hit-bitscore-threshold"},
	{short: "-V", long: "version"},
}

// Subcommand names end the value list of a multi-value flag.
var stopWords = map[string]bool{"evalue": true, "bitscore": true}

func lookupLegacy(arg string) (legacyFlag, bool) {
	for _, f := range legacyFlags {
		if arg == f.short || arg == "--"+f.long {
			return f, true
		}
	}
	return legacyFlag{}, false
}

// LegacyName returns the single-dash alias of a long flag, or "".
func LegacyName(long string) string {
	for _, f := range legacyFlags {
		if f.long == long && !f.native {
			return f.short
		}
	}
	return ""
}

// RewriteLegacyArgs turns single-dash multi-letter flags such as -seq or
// -incE into their long forms and repeats multi-value flags once per value,
// so "-seq a.fa b.fa evalue" becomes "--sequence a.fa --sequence b.fa evalue".
// Arguments after "--" are left untouched.
func RewriteLegacyArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...)
		}

		name, value, hasValue := strings.Cut(arg, "=")
		f, ok := lookupLegacy(name)
		if !ok {
			out = append(out, arg)
			continue
		}
		flag := "--" + f.long
		if hasValue {
			out = append(out, flag+"="+value)
			continue
		}
		if !f.multi {
			out = append(out, flag)
			continue
		}

		n := 0
		for i+1 < len(args) && isValue(args[i+1]) {
			i++
			out = append(out, flag, args[i])
			n++
		}
		if n == 0 {
			// leave the missing value for the flag parser to report
			out = append(out, flag)
		}
	}
	return out
}

func isValue(arg string) bool {
	return arg != "" && !strings.HasPrefix(arg, "-") && !stopWords[arg]
}
