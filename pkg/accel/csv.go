package accel

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// DecodeCSV parses an ACCELEROMETER_MEASURE capture file. The format is one
// header line followed by "time,accel_x,accel_y,accel_z" rows.
func DecodeCSV(r io.Reader) (Window, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		w    Window
		line int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to read capture csv")
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}
		if len(record) < 4 {
			return nil, pkgerrors.Errorf("capture csv line %d: expected 4 fields, got %d", line, len(record))
		}

		var s Sample
		fields := []*float64{&s.Time, &s.X, &s.Y, &s.Z}
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "capture csv line %d field %d", line, i)
			}
			*f = v
		}

		if len(w) > 0 && s.Time <= w[len(w)-1].Time {
			return nil, pkgerrors.Errorf("capture csv line %d: non-monotonic timestamp %f", line, s.Time)
		}
		w = append(w, s)
	}

	if len(w) == 0 {
		return nil, pkgerrors.New("capture csv contains no samples")
	}

	return w, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.TrimSpace(record[0])
	if strings.HasPrefix(first, "#") {
		return true
	}
	_, err := strconv.ParseFloat(first, 64)
	return err != nil
}
