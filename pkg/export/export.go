// Package export writes dispatch log records in exchange formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/mgdispatch/core/dispatch/logging"
)

// Format names an export format.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// Write encodes recs to w in the given format.
func Write(w io.Writer, f Format, recs []logging.LogRecord) error {
	switch f {
	case FormatJSONL, "":
		return WriteJSONL(w, recs)
	case FormatCSV:
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteJSONL writes one JSON document per record.
func WriteJSONL(w io.Writer, recs []logging.LogRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV flattens the records into one row per actor state.
func WriteCSV(w io.Writer, recs []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "timestamp", "label", "power"}); err != nil {
		return err
	}
	for _, r := range recs {
		ts := r.Timestamp.UTC().Format(time.RFC3339)
		for _, st := range r.States {
			row := []string{r.RunID, ts, st.Label, strconv.FormatFloat(st.Power, 'f', -1, 64)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
