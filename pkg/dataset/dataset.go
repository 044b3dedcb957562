// Package dataset loads named interval records from YAML or CSV files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/ivtree/pkg/safeconv"
)

// Sentinel errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrMalformedRecord   = errors.New("malformed dataset record")
)

// CSV layout.
const (
	csvMinFields = 3
	csvMaxFields = 4
	csvName      = 0
	csvLow       = 1
	csvHigh      = 2
	csvLabel     = 3
)

// Record is one interval belonging to the tree called Name.
type Record struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label,omitempty"`
	Low   uint32 `yaml:"low"`
	High  uint32 `yaml:"high"`
}

type rawRecord struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Low   int64  `yaml:"low"`
	High  int64  `yaml:"high"`
}

type yamlDocument struct {
	Intervals []rawRecord `yaml:"intervals"`
}

// Load reads a dataset, choosing the decoder from the file extension.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(f)
	case ".csv":
		return DecodeCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// DecodeYAML reads a document with a top-level "intervals" list.
func DecodeYAML(r io.Reader) ([]Record, error) {
	var doc yamlDocument

	err := yaml.NewDecoder(r).Decode(&doc)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	records := make([]Record, 0, len(doc.Intervals))

	for idx, raw := range doc.Intervals {
		rec, convErr := raw.toRecord()
		if convErr != nil {
			return nil, fmt.Errorf("interval %d: %w", idx, convErr)
		}

		records = append(records, rec)
	}

	return records, nil
}

// DecodeCSV reads rows of name,low,high[,label] preceded by a header row.
func DecodeCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	if len(rows) == 0 {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(rows)-1)

	for idx, row := range rows[1:] {
		line := idx + 2

		if len(row) < csvMinFields || len(row) > csvMaxFields {
			return nil, fmt.Errorf("line %d: %w: %d fields", line, ErrMalformedRecord, len(row))
		}

		raw := rawRecord{Name: row[csvName]}

		raw.Low, err = strconv.ParseInt(row[csvLow], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: low: %w", line, ErrMalformedRecord, err)
		}

		raw.High, err = strconv.ParseInt(row[csvHigh], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: high: %w", line, ErrMalformedRecord, err)
		}

		if len(row) == csvMaxFields {
			raw.Label = row[csvLabel]
		}

		rec, convErr := raw.toRecord()
		if convErr != nil {
			return nil, fmt.Errorf("line %d: %w", line, convErr)
		}

		records = append(records, rec)
	}

	return records, nil
}

func (raw rawRecord) toRecord() (Record, error) {
	if raw.Name == "" {
		return Record{}, fmt.Errorf("%w: empty name", ErrMalformedRecord)
	}

	low, ok := safeconv.ToUint32(raw.Low)
	if !ok {
		return Record{}, fmt.Errorf("%w: low %d out of range", ErrMalformedRecord, raw.Low)
	}

	high, ok := safeconv.ToUint32(raw.High)
	if !ok {
		return Record{}, fmt.Errorf("%w: high %d out of range", ErrMalformedRecord, raw.High)
	}

	if low > high {
		return Record{}, fmt.Errorf("%w: low %d exceeds high %d", ErrMalformedRecord, low, high)
	}

	return Record{Name: raw.Name, Label: raw.Label, Low: low, High: high}, nil
}
