package bulkdownload

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestWritesHeaderOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := ManifestPath("out", "ERP001736")
	assert.Equal(t, "out/ERP001736/ERP001736_metadata.tsv", path)

	m := NewManifest(fs, path)
	require.NoError(t, m.Append(ManifestRow{AnalysisID: "MGYA1", Name: "a.tsv", GroupType: "Statistics",
		Description: "Summary", DownloadURL: "http://x/a.tsv", PipelineVersion: "4.1", ExperimentType: "metagenomic"}))
	require.NoError(t, NewManifest(fs, path).Append(ManifestRow{AnalysisID: "MGYA2", Name: "b.tsv"}))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(ManifestHeader, "\t"), lines[0])
	assert.Equal(t, "MGYA1\ta.tsv\tStatistics\tSummary\thttp://x/a.tsv\t4.1\tmetagenomic", lines[1])
	assert.Equal(t, "MGYA2\tb.tsv\t\t\t\t\t", lines[2])
}
