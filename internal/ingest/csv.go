package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CSVImporter reads .csv and .tsv files. The first row is the header; every
// following row becomes one profile of "Header: value" lines.
type CSVImporter struct{}

func (c *CSVImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

func (c *CSVImporter) Import(ctx context.Context, path string) ([]RawProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var out []RawProfile
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading %s line %d: %w", path, line, err)
		}

		p := RawProfile{SourceFile: absPath(path), SourceLine: line}
		var lines []string
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			key := strings.TrimSpace(header[i])
			val := strings.TrimSpace(cell)
			if key == "" || val == "" {
				continue
			}
			switch strings.ToLower(key) {
			case "id":
				p.ID = slug(val)
				continue
			case "name":
				p.Name = val
			}
			lines = append(lines, labelFor(key)+": "+val)
		}
		if len(lines) == 0 {
			continue
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("%s-row%d", baseID(path), line)
		}
		p.Content = strings.Join(lines, "\n")
		out = append(out, p)
	}
	return out, nil
}
