package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/odelab/internal/dynamo"
)

// WriteJSON encodes tr as {"time": [...], "values": [[...], ...]}. A
// trajectory holding NaN or Inf is rejected with ErrInvalidState.
func WriteJSON(w io.Writer, tr *dynamo.Trajectory) error {
	for i, v := range tr.Values {
		if !v.IsValid() {
			return fmt.Errorf("%w: sample %d at t=%g", dynamo.ErrInvalidState, i, tr.Time[i])
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tr)
}

// ReadJSON decodes the format written by WriteJSON.
func ReadJSON(r io.Reader) (*dynamo.Trajectory, error) {
	var tr dynamo.Trajectory
	if err := json.NewDecoder(r).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode trajectory: %w", err)
	}
	if len(tr.Time) != len(tr.Values) {
		return nil, dynamo.DimError("trajectory values", len(tr.Time), len(tr.Values))
	}
	return &tr, nil
}

// WriteCSV writes a header row "time,<labels...>" then one row per sample.
// Values use the shortest representation that parses back exactly.
func WriteCSV(w io.Writer, tr *dynamo.Trajectory, labels []string) error {
	cw := csv.NewWriter(w)

	dim := 0
	if tr.Len() > 0 {
		dim = len(tr.Values[0])
	}
	header := make([]string, 0, dim+1)
	header = append(header, "time")
	for i := 0; i < dim; i++ {
		if i < len(labels) {
			header = append(header, labels[i])
		} else {
			header = append(header, fmt.Sprintf("y%d", i))
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, dim+1)
	for i, t := range tr.Time {
		y := tr.Values[i]
		if len(y) != dim {
			return dynamo.DimError(fmt.Sprintf("sample %d", i), dim, len(y))
		}
		row[0] = strconv.FormatFloat(t, 'g', -1, 64)
		for j, v := range y {
			row[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the format written by WriteCSV.
func ReadCSV(r io.Reader) (*dynamo.Trajectory, []string, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("missing header")
	}

	labels := append([]string(nil), records[0][1:]...)
	tr := &dynamo.Trajectory{
		Time:   make([]float64, 0, len(records)-1),
		Values: make([]dynamo.State, 0, len(records)-1),
	}
	for line, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		y := make(dynamo.State, len(rec)-1)
		for j := range y {
			if y[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", line+2, err)
			}
		}
		tr.Time = append(tr.Time, t)
		tr.Values = append(tr.Values, y)
	}
	return tr, labels, nil
}
