package tabular

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"
)

// Cell is a JSON scalar kept as table text. Services disagree on whether
// numbers are quoted, so both spellings decode to the same text.
type Cell string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*c = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cell(s)
	case b[0] == '{' || b[0] == '[':
		*c = Cell(strings.TrimSpace(string(b)))
	default:
		*c = Cell(b)
	}
	return nil
}

// String returns the cell text.
func (c Cell) String() string { return string(c) }
