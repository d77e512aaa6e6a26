package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinnerPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Searching query_1")
	s.Start()
	s.Start()
	s.Update("Searching query_2")
	s.Stop("done")
	s.Stop("again")

	assert.Equal(t, "Searching query_1...\nSearching query_2...\ndone\n", buf.String())
}
