// Package fasta reads FASTA query files.
package fasta

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/nishad/mgtk/internal/errors"
)

// Record is one sequence.
type Record struct {
	ID       string
	Sequence string
}

// Parse reads FASTA records from r. The ID is the header line without the
// leading '>'; sequence lines are concatenated. Records keep file order and
// a repeated ID replaces the earlier sequence in place.
func Parse(r io.Reader) ([]Record, error) {
	const op errors.Op = "fasta.parse"

	var (
		records []Record
		index   = make(map[string]int)
		current = -1
		seq     strings.Builder
	)
	flush := func() {
		if current >= 0 {
			records[current].Sequence = seq.String()
		}
		seq.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			id := strings.TrimSpace(line[1:])
			if i, ok := index[id]; ok {
				current = i
				continue
			}
			records = append(records, Record{ID: id})
			current = len(records) - 1
			index[id] = current
			continue
		}
		if current < 0 {
			return nil, errors.E(op, errors.KindParse, "sequence data before the first '>' header")
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	flush()
	return records, nil
}

// ParseFile reads FASTA records from path.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.Op("fasta.parse_file"), errors.KindIO, err)
	}
	defer f.Close()
	return Parse(f)
}
