package jsonapi

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runWithSample = `{
  "data": {
    "type": "runs",
    "id": "ERR1",
    "attributes": {"accession": "ERR1", "instrument-model": null},
    "relationships": {"sample": {"data": {"type": "samples", "id": "ERS1"}}}
  },
  "included": [{
    "type": "samples",
    "id": "ERS1",
    "attributes": {"sample-metadata": [{"key": "temperature", "value": "12", "unit": "C"}]},
    "relationships": {"biome": {"data": {"type": "biomes", "id": "root:Host-associated:Human"}}}
  }]
}`

func TestDecodeSingleResource(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(runWithSample), &doc))

	require.True(t, doc.Data.Single)
	p, ok := doc.Primary()
	require.True(t, ok)
	assert.Equal(t, "ERR1", p.ID)
	assert.Equal(t, "ERR1", p.String("accession"))
	assert.Equal(t, "", p.String("instrument-model"))

	id, ok := p.RelationshipID("sample")
	assert.True(t, ok)
	assert.Equal(t, "ERS1", id)
}

func TestDocumentFallsBackToIncluded(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(runWithSample), &doc))

	var meta []map[string]string
	ok, err := doc.Attribute("sample-metadata", &meta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "temperature", meta[0]["key"])

	biome, ok := doc.RelationshipID("biome")
	assert.True(t, ok)
	assert.Equal(t, "root:Host-associated:Human", biome)

	_, ok = doc.RelationshipID("study")
	assert.False(t, ok)

	ok, err = doc.Attribute("missing", &meta)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeCollection(t *testing.T) {
	body := `{
	  "data": [{"type": "analysis-jobs", "id": "MGYA1", "attributes": {"pipeline-version": "4.1", "size": 12}}],
	  "links": {"next": null},
	  "meta": {"pagination": {"page": 1, "pages": 1, "count": 1}}
	}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(body), &doc))

	assert.False(t, doc.Data.Single)
	require.Len(t, doc.Data.Resources, 1)
	assert.Equal(t, "", doc.Links.Next)
	assert.Equal(t, "12", doc.Data.Resources[0].String("size"))

	count, ok := doc.Count()
	assert.True(t, ok)
	assert.Equal(t, 1, count)
}

func TestDecodeNullData(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"data": null}`), &doc))
	_, ok := doc.Primary()
	assert.False(t, ok)
	_, ok = doc.Count()
	assert.False(t, ok)
}

func TestToManyRelationshipHasNoID(t *testing.T) {
	rel := Relationship{Data: json.RawMessage(`[{"type":"runs","id":"ERR1"}]`)}
	_, ok := rel.ID()
	assert.False(t, ok)

	rel = Relationship{Data: json.RawMessage(`null`)}
	_, ok = rel.ID()
	assert.False(t, ok)
}
