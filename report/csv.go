package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/tracking"
)

// ErrBadCSV is returned for a malformed trajectory table.
var ErrBadCSV = errors.New("report: malformed trajectory csv")

var csvHeader = []string{"frame", "row", "col", "present"}

// WriteCSV writes the trajectory as a frame,row,col,present table. Absent
// frames have empty row and col cells.
func WriteCSV(w io.Writer, t tracking.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "report: csv header")
	}
	for i, c := range t {
		rec := []string{strconv.Itoa(i), "", "", "false"}
		if c.Present {
			rec[1], rec[2], rec[3] = strconv.Itoa(c.Row), strconv.Itoa(c.Col), "true"
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "report: csv frame %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "report: csv flush")
}

// ReadCSV parses a table written by WriteCSV. Frames must be listed in order
// starting at 0.
func ReadCSV(r io.Reader) (tracking.Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(ErrBadCSV, err.Error())
	}
	if len(records) == 0 {
		return nil, errors.Wrap(ErrBadCSV, "missing header")
	}
	for i, h := range csvHeader {
		if records[0][i] != h {
			return nil, errors.Wrapf(ErrBadCSV, "header column %d is %q, want %q", i, records[0][i], h)
		}
	}

	out := make(tracking.Trajectory, 0, len(records)-1)
	for line, rec := range records[1:] {
		frame, err := strconv.Atoi(rec[0])
		if err != nil || frame != line {
			return nil, errors.Wrapf(ErrBadCSV, "line %d: frame %q", line+2, rec[0])
		}
		present, err := strconv.ParseBool(rec[3])
		if err != nil {
			return nil, errors.Wrapf(ErrBadCSV, "line %d: present %q", line+2, rec[3])
		}
		if !present {
			out = append(out, detector.Absent)
			continue
		}
		row, rerr := strconv.Atoi(rec[1])
		col, cerr := strconv.Atoi(rec[2])
		if rerr != nil || cerr != nil {
			return nil, errors.Wrapf(ErrBadCSV, "line %d: position %q,%q", line+2, rec[1], rec[2])
		}
		out = append(out, detector.At(row, col))
	}
	return out, nil
}
