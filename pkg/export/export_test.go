package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mgdispatch/core/dispatch/logging"
	"github.com/kilianp07/mgdispatch/core/model"
)

func records() []logging.LogRecord {
	return []logging.LogRecord{{
		RunID:     "run-1",
		Timestamp: time.Date(2024, 5, 1, 0, 15, 0, 0, time.UTC),
		States:    model.StateVector{{Label: "G", Power: 80}, {Label: "Bat", Power: -30}, {Label: "L", Power: -50}},
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, records()))
	want := "run_id,timestamp,label,power\n" +
		"run-1,2024-05-01T00:15:00Z,G,80\n" +
		"run-1,2024-05-01T00:15:00Z,Bat,-30\n" +
		"run-1,2024-05-01T00:15:00Z,L,-50\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "", records()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"run_id":"run-1"`)
	assert.Contains(t, lines[0], `{"label":"Bat","power":-30}`)
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "parquet", records()))
}
