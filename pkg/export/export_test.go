package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Student", "Total", "Grade"},
		Rows: []map[string]string{
			{"Student": "Ama Mensah", "Total": "78.50", "Grade": "2"},
			{"Student": "Kofi Boateng", "Total": "64.00", "Grade": "3"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Total,Grade", lines[0])
	assert.Equal(t, "Ama Mensah,78.50,2", lines[1])
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "x")
	assert.Error(t, err)
	_, err = NewXLSXExporter("").Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Terminal Report")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestXLSXRoundTrip(t *testing.T) {
	out, err := NewXLSXExporter("Broadsheet").Render(sampleDataset())
	require.NoError(t, err)

	header, rows, err := ReadFirstSheet(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Student", "Total", "Grade"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "Kofi Boateng", rows[1][0])
}

func TestReadFirstSheetRejectsGarbage(t *testing.T) {
	_, _, err := ReadFirstSheet([]byte("not a workbook"))
	assert.Error(t, err)
}

func TestCSVExporterWithBOM(t *testing.T) {
	out, err := NewCSVExporter().WithBOM().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, utf8BOM, out[:3])
}
