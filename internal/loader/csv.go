package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/spikeraster/internal/raster"
)

var (
	timeColumns  = []string{"time", "t", "spkt", "spktimes", "spiketimes"}
	indexColumns = []string{"index", "gid", "spkid", "spkinds", "spikeindices"}
)

// decodeCSV reads a headed two-column spike table. Column names are
// matched case-insensitively; extra columns are ignored. Lines starting
// with '#' are comments.
func decodeCSV(path string, data []byte) (raster.RawInput, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comment = '#'
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: "missing header row"}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: "invalid CSV", Err: err}
	}

	tcol, icol := columnIndex(header, timeColumns), columnIndex(header, indexColumns)
	if tcol < 0 || icol < 0 {
		return nil, &LoadError{
			Code:    ErrCodeShape,
			Path:    path,
			Message: fmt.Sprintf("header %v needs a time column and an index column", header),
		}
	}

	m := raster.Mapping{SpikeTimes: []float64{}, SpikeIndices: []int{}}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: "invalid CSV", Err: err}
		}
		line, _ := r.FieldPos(0)

		t, err := strconv.ParseFloat(rec[tcol], 64)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: fmt.Sprintf("line %d: bad time %q", line, rec[tcol])}
		}
		idx, err := strconv.Atoi(rec[icol])
		if err != nil {
			return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: fmt.Sprintf("line %d: bad index %q", line, rec[icol])}
		}
		m.SpikeTimes = append(m.SpikeTimes, t)
		m.SpikeIndices = append(m.SpikeIndices, idx)
	}
	return m, nil
}

func columnIndex(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, name := range names {
			if h == name {
				return i
			}
		}
	}
	return -1
}
