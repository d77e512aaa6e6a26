package bulkdownload

import (
	"slices"
	"strings"

	"github.com/nishad/mgtk/internal/errors"
)

// PipelineVersions are the pipeline versions MGnify has published results for.
var PipelineVersions = []string{"1.0", "2.0", "3.0", "4.0", "4.1", "5.0"}

// KnownResultGroups are the result directories MGnify is known to produce.
// A filter outside this list is still applied as given.
var KnownResultGroups = []string{
	"statistics",
	"sequence_data",
	"functional_analysis",
	"taxonomic_analysis",
	"taxonomic_analysis_ssu_rrna",
	"taxonomic_analysis_lsu_rrna",
	"non-coding_rnas",
	"taxonomic_analysis_itsonedb",
	"taxonomic_analysis_unite",
	"taxonomic_analysis_motu",
	"pathways_and_systems",
}

// ampliconExcluded are file labels that amplicon analyses list but do not
// actually provide.
var ampliconExcluded = map[string]bool{
	"Predicted CDS with annotation":      true,
	"Predicted CDS without annotation":   true,
	"Processed reads with annotation":    true,
	"Processed reads without annotation": true,
	"Predicted ORF without annotation":   true,
	"Processed reads with pCDS":          true,
}

// ResultGroup maps a download group type to its directory name, e.g.
// "Taxonomic analysis SSU rRNA" to "taxonomic_analysis_ssu_rrna".
func ResultGroup(groupType string) string {
	return strings.ReplaceAll(strings.ToLower(groupType), " ", "_")
}

// Excluded reports whether a download must never be fetched, and why.
func Excluded(experimentType, pipelineVersion, description string) (bool, string) {
	if experimentType == "amplicon" && ampliconExcluded[description] {
		return true, "not produced for amplicon analyses"
	}
	if description == "Phylogenetic tree" && pipelineVersion == "2.0" {
		return true, "phylogenetic trees of pipeline 2.0 are unavailable"
	}
	return false, ""
}

// Validate checks the options before any request is made.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Project) == "" {
		return errors.E(errors.KindValidation, "a study or project accession is required")
	}
	if o.PipelineVersion != "" && !slices.Contains(PipelineVersions, o.PipelineVersion) {
		return errors.E(errors.KindValidation, "unsupported pipeline version "+o.PipelineVersion+
			"; supported versions are "+strings.Join(PipelineVersions, ", "))
	}
	return nil
}
