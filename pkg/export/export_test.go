package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Starts", "Student", "Status"},
		Rows: []map[string]string{
			{"Starts": "2024-03-04 09:00", "Student": "Ana, B.", "Status": "scheduled"},
			{"Starts": "2024-03-06 09:00", "Student": "Jo", "Status": "cancelled"},
		},
	}
}

func TestCSVExporterRendersRowsInHeaderOrder(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "Starts,Student,Status\n2024-03-04 09:00,\"Ana, B.\",scheduled\n2024-03-06 09:00,Jo,cancelled\n", string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{}, "")
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestPDFExporterProducesDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Tutor schedule")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, "application/pdf", NewPDFExporter().ContentType())
}

func TestCurrencyHelpers(t *testing.T) {
	code, err := ParseCurrency("usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", code)

	_, err = ParseCurrency("XYZ1")
	assert.Error(t, err)

	assert.Equal(t, "USD 12.50", FormatMinorUnits(1250, "USD"))
	assert.Equal(t, "USD 0.05", FormatMinorUnits(5, "USD"))
	assert.Equal(t, "JPY 1250", FormatMinorUnits(1250, "JPY"))
	assert.Equal(t, "USD -3.00", FormatMinorUnits(-300, "USD"))
}
