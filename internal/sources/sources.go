package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/tidwall/gjson"
)

// RecordSource yields the raw records of one system.
type RecordSource interface {
	Fetch(ctx context.Context) ([]model.Record, error)
}

// Envelope keys tried, in order, when a JSON document is an object.
var DefaultEnvelopePaths = []string{"value", "contacts", "profiles", "data", "items"}

// JSONFile reads a JSON array of objects, or an object wrapping one. Path is
// a gjson path selecting the array; empty tries DefaultEnvelopePaths.
type JSONFile struct {
	Path     string
	JSONPath string
}

func (s JSONFile) Fetch(ctx context.Context) ([]model.Record, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	return ParseJSON(data, s.JSONPath)
}

// ParseJSON extracts the record array from data.
func ParseJSON(data []byte, path string) ([]model.Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON document")
	}
	root := gjson.ParseBytes(data)

	var arr gjson.Result
	switch {
	case path != "":
		arr = root.Get(path)
	case root.IsArray():
		arr = root
	default:
		for _, p := range DefaultEnvelopePaths {
			if r := root.Get(p); r.IsArray() {
				arr = r
				break
			}
		}
	}
	if !arr.IsArray() {
		return nil, errors.New("no record array found in JSON document")
	}

	var records []model.Record
	for i, item := range arr.Array() {
		rec, ok := item.Value().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		records = append(records, model.Record(rec))
	}
	return records, nil
}

// CSVFile reads a header-keyed CSV export. Preamble lines before the header
// (such as the "Notes:" block of a Connections.csv export) are skipped: the
// header is the first row containing HeaderHint, or the first row when
// HeaderHint is empty.
type CSVFile struct {
	Path       string
	HeaderHint string
}

func (s CSVFile) Fetch(ctx context.Context) ([]model.Record, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer f.Close()
	return ParseCSV(ctx, f, s.HeaderHint)
}

func ParseCSV(ctx context.Context, r io.Reader, headerHint string) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var header []string
	var records []model.Record
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		if header == nil {
			if headerHint == "" || containsCell(row, headerHint) {
				header = make([]string, len(row))
				for i, h := range row {
					header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
				}
			}
			continue
		}
		if isBlank(row) {
			continue
		}

		rec := make(model.Record, len(header))
		for i, h := range header {
			if h == "" || i >= len(row) {
				continue
			}
			rec[h] = strings.TrimSpace(row[i])
		}
		records = append(records, rec)
	}
	if header == nil {
		return nil, errors.New("csv header not found")
	}
	return records, nil
}

func containsCell(row []string, want string) bool {
	for _, c := range row {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")), want) {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Open picks a loader from the file extension. CSV files use "First Name"
// as the header hint.
func Open(path string) (RecordSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSONFile{Path: path}, nil
	case ".csv":
		return CSVFile{Path: path, HeaderHint: "First Name"}, nil
	default:
		return nil, fmt.Errorf("unsupported source file type: %s", path)
	}
}

// Static serves records held in memory.
type Static []model.Record

func (s Static) Fetch(ctx context.Context) ([]model.Record, error) {
	return []model.Record(s), nil
}
