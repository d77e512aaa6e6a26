package mgnify

import (
	"github.com/nishad/mgtk/internal/jsonapi"
)

// Analysis is one pipeline run over a sample's sequencing run.
type Analysis struct {
	ID              string
	PipelineVersion string
	ExperimentType  string
	Study           string
	Run             string
	Sample          string
}

// AnalysisFromResource reads an analyses resource.
func AnalysisFromResource(r *jsonapi.Resource) Analysis {
	a := Analysis{
		ID:              r.String("accession"),
		PipelineVersion: r.String("pipeline-version"),
		ExperimentType:  r.String("experiment-type"),
	}
	if a.ID == "" {
		a.ID = r.ID
	}
	a.Study, _ = r.RelationshipID("study")
	a.Run, _ = r.RelationshipID("run")
	a.Sample, _ = r.RelationshipID("sample")
	return a
}

// Download is one downloadable result file of an analysis.
type Download struct {
	Alias       string
	GroupType   string
	Description string
	URL         string
	Format      string
	Compressed  bool
}

type label struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

type fileFormat struct {
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	Compression bool   `json:"compression"`
}

// DownloadFromResource reads an analysis-downloads resource. The file URL
// is the resource's self link.
func DownloadFromResource(r *jsonapi.Resource) Download {
	d := Download{
		Alias:     r.String("alias"),
		GroupType: r.String("group-type"),
		URL:       r.Links["self"],
	}
	if d.Alias == "" {
		d.Alias = r.ID
	}

	var desc label
	if ok, err := r.Attribute("description", &desc); ok && err == nil {
		d.Description = desc.Label
	}
	var ff fileFormat
	if ok, err := r.Attribute("file-format", &ff); ok && err == nil {
		d.Format = ff.Name
		d.Compressed = ff.Compression
	}
	return d
}

// Field is one sample metadata entry.
type Field struct {
	Key   string
	Value string
}

// Metadata is a sample's metadata in server order.
type Metadata []Field

// Get returns the last value stored under key.
func (m Metadata) Get(key string) (string, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i].Key == key {
			return m[i].Value, true
		}
	}
	return "", false
}
