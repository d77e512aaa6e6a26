package bulkdownload

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/nishad/mgtk/internal/errors"
)

// ManifestHeader is written once when a manifest is created.
var ManifestHeader = []string{
	"analysis_id", "name", "group_type", "description",
	"download_url", "pipeline_version", "experiment_type",
}

// ManifestRow records one stored file.
type ManifestRow struct {
	AnalysisID      string
	Name            string
	GroupType       string
	Description     string
	DownloadURL     string
	PipelineVersion string
	ExperimentType  string
}

func (r ManifestRow) record() []string {
	return []string{
		r.AnalysisID, r.Name, r.GroupType, r.Description,
		r.DownloadURL, r.PipelineVersion, r.ExperimentType,
	}
}

// Manifest is the per-project tab-separated list of stored files. The file
// is opened, appended to and closed for every row.
type Manifest struct {
	fs   afero.Fs
	path string
}

// NewManifest returns the manifest stored at path.
func NewManifest(fs afero.Fs, path string) *Manifest {
	return &Manifest{fs: fs, path: path}
}

// ManifestPath returns root/project/{project}_metadata.tsv.
func ManifestPath(root, project string) string {
	return filepath.Join(root, project, project+"_metadata.tsv")
}

// Path returns the manifest location.
func (m *Manifest) Path() string { return m.path }

// Append adds a row, writing the header first when the file is new.
func (m *Manifest) Append(row ManifestRow) error {
	const op errors.Op = "manifest.append"

	exists, err := afero.Exists(m.fs, m.path)
	if err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	if err := m.fs.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return errors.E(op, errors.KindIO, err)
	}

	f, err := m.fs.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.E(op, errors.KindIO, err)
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if !exists {
		if err := w.Write(ManifestHeader); err != nil {
			f.Close()
			return errors.E(op, errors.KindIO, err)
		}
	}
	if err := w.Write(row.record()); err != nil {
		f.Close()
		return errors.E(op, errors.KindIO, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.E(op, errors.KindIO, err)
	}
	if err := f.Close(); err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	return nil
}
