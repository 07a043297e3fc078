package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// Sentinel kinds for import errors.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidRow    = errors.New("invalid row")
)

// ImportCSV reads the public fetal health CSV. The header must name all 21
// features and the label column, in any order; extra columns are ignored.
// Every row must pass validation.
func ImportCSV(r io.Reader) ([]model.Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.ToLower(strings.TrimSpace(name))] = i
	}
	columns := model.Columns()
	index := make([]int, len(columns))
	for i, c := range columns {
		p, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
		index[i] = p
	}

	var out []model.Observation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		o, err := parseRecord(rec, columns, index)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRow, line, err)
		}
		out = append(out, o)
	}
}

func parseRecord(rec, columns []string, index []int) (model.Observation, error) {
	row := make([]float64, len(columns))
	for i, p := range index {
		if p >= len(rec) {
			return model.Observation{}, fmt.Errorf("%s: missing value", columns[i])
		}
		v, err := cast.ToFloat64E(strings.TrimSpace(rec[p]))
		if err != nil {
			return model.Observation{}, fmt.Errorf("%s: %w", columns[i], err)
		}
		row[i] = v
	}
	o, err := model.ObservationFromRow(row)
	if err != nil {
		return model.Observation{}, err
	}
	if err := o.ValidateLabeled(); err != nil {
		return model.Observation{}, err
	}
	return o, nil
}
