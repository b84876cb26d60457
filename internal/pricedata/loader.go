package pricedata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
)

// Load reads a price file and validates the result. The format is picked
// by extension: .feather/.arrow (Arrow IPC, as written by pandas) or .csv.
func Load(path string) (Series, error) {
	var (
		series Series
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".feather", ".arrow", ".ipc":
		series, err = loadFeather(path)
	case ".csv":
		series, err = loadCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(series); err != nil {
		return nil, fmt.Errorf("invalid price data in %s: %w", path, err)
	}
	return series, nil
}

// canonicalColumn maps a header name to its canonical spelling, matching
// case-insensitively. Unknown names are returned unchanged.
func canonicalColumn(name string) string {
	trimmed := strings.TrimSpace(name)
	for _, c := range RequiredColumns {
		if strings.EqualFold(trimmed, c) {
			return c
		}
	}
	return name
}

func checkColumns(header []string) error {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[canonicalColumn(h)] = struct{}{}
	}
	for _, c := range RequiredColumns {
		if _, ok := present[c]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}
	return nil
}

type csvBar struct {
	Time   int64   `csv:"Time"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume float64 `csv:"Volume"`
}

// headerReader canonicalizes the header row so gocsv's exact tag matching
// accepts any capitalization.
type headerReader struct {
	*csv.Reader
	seen bool
}

func (r *headerReader) Read() ([]string, error) {
	row, err := r.Reader.Read()
	if err != nil || r.seen {
		return row, err
	}
	r.seen = true
	if err := checkColumns(row); err != nil {
		return nil, err
	}
	for i, h := range row {
		row[i] = canonicalColumn(h)
	}
	return row, nil
}

func (r *headerReader) ReadAll() ([][]string, error) {
	var rows [][]string
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return rows, nil
			}
			return nil, err
		}
		rows = append(rows, row)
	}
}

func loadCSV(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var rows []csvBar
	if err := gocsv.UnmarshalCSV(&headerReader{Reader: csv.NewReader(f)}, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, fmt.Errorf("%s: %w", path, ErrEmptySeries)
		}
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	series := make(Series, len(rows))
	for i, r := range rows {
		series[i] = Bar{
			Time:   FromMillis(r.Time),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return series, nil
}
