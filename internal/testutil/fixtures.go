package testutil

import "fmt"

// Analysis describes one analyses resource and its downloads.
type Analysis struct {
	ID              string
	Study           string
	PipelineVersion string
	ExperimentType  string
	Run             string
	Sample          string
	Downloads       []Download

	// DownloadsStatus, when non-zero, is returned instead of the
	// downloads collection.
	DownloadsStatus int
}

// Download describes one analysis-downloads resource. The file is served
// with Content unless Status is set.
type Download struct {
	Alias       string
	GroupType   string
	Description string
	Content     string
	Status      int
}

// MetadataEntry is one sample-metadata triple.
type MetadataEntry struct {
	Key   string
	Value any
	Unit  any
}

// Sample describes a samples resource.
type Sample struct {
	Accession string
	Metadata  []MetadataEntry
	Biome     string
}

// ENARun is one read_run row of the portal search.
type ENARun struct {
	Run             string
	SecondarySample string
	Sample          string
	Depth           string
}

// ENAAttribute is a sample TAG/VALUE pair. An empty Tag is written without
// a TAG element.
type ENAAttribute struct {
	Tag   string
	Value string
}

// Groups are MGnify download group types, one per result directory.
var Groups = []string{
	"Statistics",
	"Sequence data",
	"Functional analysis",
	"Taxonomic analysis",
	"Taxonomic analysis SSU rRNA",
	"Taxonomic analysis LSU rRNA",
	"non-coding RNAs",
	"Pathways and Systems",
}

// Study builds n analyses of study with one download each. Up to
// len(Groups) analyses land in distinct result directories.
func Study(study string, n int) []Analysis {
	groups := Groups
	analyses := make([]Analysis, 0, n)
	for i := 1; i <= n; i++ {
		analyses = append(analyses, Analysis{
			ID:              fmt.Sprintf("MGYA%08d", i),
			Study:           study,
			PipelineVersion: "4.1",
			ExperimentType:  "metagenomic",
			Run:             fmt.Sprintf("ERR%06d", i),
			Sample:          fmt.Sprintf("ERS%06d", i),
			Downloads: []Download{{
				Alias:       fmt.Sprintf("ERR%06d_MERGED_FASTQ_summary.tsv", i),
				GroupType:   groups[(i-1)%len(groups)],
				Description: "Summary",
				Content:     fmt.Sprintf("file %d\n", i),
			}},
		})
	}
	return analyses
}

// SoilSample returns a sample with units that need HTML unescaping.
func SoilSample(accession string) Sample {
	return Sample{
		Accession: accession,
		Metadata: []MetadataEntry{
			{Key: "temperature", Value: "12.5", Unit: "&#176;C"},
			{Key: "geographic location (latitude)", Value: 51.5, Unit: "DD"},
			{Key: "environment (biome)", Value: "soil", Unit: nil},
		},
		Biome: "root:Environmental:Terrestrial:Soil",
	}
}

// SearchResponse is a sequence search answer with two hits. The first hit
// lists the same accession under samples and runs.
const SearchResponse = `{
  "results": {
    "uuid": "5A1C5B52-0001",
    "hits": [
      {
        "name": "MGYP000001",
        "desc": "hypothetical protein",
        "taxid": "1234",
        "species": "uncultured bacterium",
        "kg": "Bacteria",
        "score": "152.3",
        "evalue": 1.2e-40,
        "pvalue": -98.1,
        "nreported": 1,
        "uniprot_link": [["A0A001", "x"], ["A0A002", "y"]],
        "mgnify": {
          "samples": [["ERS000001", "soil"], ["ERS000002", "soil"]],
          "runs": [["ERS000001", "soil run"]]
        }
      },
      {
        "name": "MGYP000002",
        "desc": "kinase",
        "taxid": 562,
        "species": "Escherichia coli",
        "kg": "Bacteria",
        "score": 88,
        "evalue": "3e-20",
        "pvalue": "-50",
        "nreported": "2",
        "mgnify": {
          "samples": [],
          "runs": [["ERR000009", "gut"]]
        }
      }
    ]
  }
}`
