// Package jsonapi models the subset of JSON:API documents served by the
// MGnify API and walks its paginated collections.
package jsonapi

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// Document is a JSON:API top-level document. Data holds the primary
// resources whether the server sent a single object or an array.
type Document struct {
	Data     Data       `json:"data"`
	Included []Resource `json:"included,omitempty"`
	Links    Links      `json:"links"`
	Meta     Meta       `json:"meta"`
}

// Links carries the pagination cursor.
type Links struct {
	Self  string `json:"self,omitempty"`
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	Next  string `json:"next,omitempty"`
	Prev  string `json:"prev,omitempty"`
}

// Meta carries server-reported collection totals.
type Meta struct {
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination is MGnify's meta.pagination block.
type Pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Count int `json:"count"`
}

// Count returns meta.pagination.count and whether the server sent it.
func (d *Document) Count() (int, bool) {
	if d.Meta.Pagination == nil {
		return 0, false
	}
	return d.Meta.Pagination.Count, true
}

// Data is the primary data of a document.
type Data struct {
	Resources []Resource
	Single    bool
}

// UnmarshalJSON accepts null, a single resource object or an array.
func (d *Data) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		d.Resources, d.Single = nil, false
		return nil
	case b[0] == '[':
		d.Single = false
		return json.Unmarshal(b, &d.Resources)
	default:
		var r Resource
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		d.Resources, d.Single = []Resource{r}, true
		return nil
	}
}

// MarshalJSON writes the shape that was read.
func (d Data) MarshalJSON() ([]byte, error) {
	if d.Single && len(d.Resources) == 1 {
		return json.Marshal(d.Resources[0])
	}
	if d.Resources == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Resources)
}

// Resource is one JSON:API resource object.
type Resource struct {
	Type          string                     `json:"type"`
	ID            string                     `json:"id"`
	Attributes    map[string]json.RawMessage `json:"attributes,omitempty"`
	Relationships map[string]Relationship    `json:"relationships,omitempty"`
	Links         map[string]string          `json:"links,omitempty"`
}

// Relationship is a to-one or to-many link to other resources.
type Relationship struct {
	Data  json.RawMessage   `json:"data,omitempty"`
	Links map[string]string `json:"links,omitempty"`
}

// Identifier is a resource linkage.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ID returns the id of a to-one relationship.
func (r Relationship) ID() (string, bool) {
	b := bytes.TrimSpace(r.Data)
	if len(b) == 0 || b[0] != '{' {
		return "", false
	}
	var ident Identifier
	if err := json.Unmarshal(b, &ident); err != nil || ident.ID == "" {
		return "", false
	}
	return ident.ID, true
}

// Attribute decodes attribute name into v. It reports false when the
// attribute is absent or null.
func (r *Resource) Attribute(name string, v any) (bool, error) {
	raw, ok := r.Attributes[name]
	if !ok || len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

// String returns a scalar attribute rendered as text. Numbers keep their
// JSON spelling; missing, null and non-scalar values give "".
func (r *Resource) String(name string) string {
	raw := bytes.TrimSpace(r.Attributes[name])
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}

// RelationshipID returns the id of the named to-one relationship.
func (r *Resource) RelationshipID(name string) (string, bool) {
	rel, ok := r.Relationships[name]
	if !ok {
		return "", false
	}
	return rel.ID()
}

// Primary returns the first primary resource.
func (d *Document) Primary() (*Resource, bool) {
	if len(d.Data.Resources) == 0 {
		return nil, false
	}
	return &d.Data.Resources[0], true
}

// candidates lists the primary resource followed by the first included one,
// the two places MGnify puts sample attributes.
func (d *Document) candidates() []*Resource {
	var out []*Resource
	if p, ok := d.Primary(); ok {
		out = append(out, p)
	}
	if len(d.Included) > 0 {
		out = append(out, &d.Included[0])
	}
	return out
}

// Attribute decodes name from the primary resource, or from the first
// included resource when the primary does not carry it.
func (d *Document) Attribute(name string, v any) (bool, error) {
	for _, r := range d.candidates() {
		if _, ok := r.Attributes[name]; !ok {
			continue
		}
		return r.Attribute(name, v)
	}
	return false, nil
}

// RelationshipID returns the named relationship id from the primary
// resource, or from the first included resource.
func (d *Document) RelationshipID(name string) (string, bool) {
	for _, r := range d.candidates() {
		if id, ok := r.RelationshipID(name); ok {
			return id, true
		}
	}
	return "", false
}
