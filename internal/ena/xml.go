package ena

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/nishad/mgtk/internal/errors"
)

// Attribute is a submitter-defined TAG/VALUE pair.
type Attribute struct {
	Tag   string `xml:"TAG"`
	Value string `xml:"VALUE"`
	Units string `xml:"UNITS,omitempty"`
}

type sample struct {
	Accession  string      `xml:"accession,attr,omitempty"`
	Attributes []Attribute `xml:"SAMPLE_ATTRIBUTES>SAMPLE_ATTRIBUTE"`
}

// ParseSampleAttributes reads the first SAMPLE element of an ENA XML
// document, whatever its root. Attributes without a TAG are dropped.
func ParseSampleAttributes(r io.Reader) ([]Attribute, error) {
	const op errors.Op = "ena.parse_sample"

	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil, errors.E(op, errors.KindParse, "no SAMPLE element in document")
		}
		if err != nil {
			return nil, errors.E(op, errors.KindParse, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "SAMPLE") {
			continue
		}

		var s sample
		if err := decoder.DecodeElement(&s, &start); err != nil {
			return nil, errors.E(op, errors.KindParse, err)
		}
		attrs := make([]Attribute, 0, len(s.Attributes))
		for _, a := range s.Attributes {
			if strings.TrimSpace(a.Tag) == "" {
				continue
			}
			attrs = append(attrs, a)
		}
		return attrs, nil
	}
}
