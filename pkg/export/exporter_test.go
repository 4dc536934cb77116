package export

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"Tech", "Notes"}}
	data.Append("Alice", "Checked cable, replaced switch")
	data.Append("Bob")

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Tech,Notes\nAlice,\"Checked cable, replaced switch\"\nBob,\n", string(out))
}

func TestCSVExporterRejectsBadInput(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)

	_, err = NewCSVExporter().Render(Dataset{Headers: []string{"A"}, Rows: [][]string{{"1", "2"}}})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"Tech", "Profile", "Total"}}
	for i := 0; i < 80; i++ {
		data.Append(fmt.Sprintf("Tech %d", i), "steady", "3")
	}

	out, err := NewPDFExporter().Render(Document{Title: "Ticket stats", Subtitle: []string{"Seed 42"}, Table: data})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Document{})
	require.Error(t, err)
}
