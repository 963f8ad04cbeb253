package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/path2target/transform-core/internal/core"
)

// FileSource reads a delimited file. The whole table is materialized on open:
// the profiler and the builder each need an independent pass, and raw dumps
// sized for this engine fit in memory.
type FileSource struct {
	id        string
	columns   []string
	rows      [][]string
	malformed int
}

// Open reads a CSV or TSV file into a FileSource. The delimiter is taken from
// the extension; anything that is not .tsv/.tab is tried as CSV first and
// re-read as TSV when the header comes back as a single column.
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Errorf(core.CodeProfiling, "open source %s: %w", path, err)
	}
	defer f.Close()

	delim := ','
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		delim = '\t'
	}

	src, err := parse(f, path, delim)
	if err != nil {
		return nil, err
	}
	if delim == ',' && len(src.columns) == 1 && strings.Contains(src.columns[0], "\t") {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, core.Errorf(core.CodeProfiling, "rewind source %s: %w", path, err)
		}
		return parse(f, path, '\t')
	}
	return src, nil
}

// FromReader reads delimited content from r. The id names the stream for
// caching and provenance.
func FromReader(r io.Reader, id string, delim rune) (*FileSource, error) {
	return parse(r, id, delim)
}

func parse(r io.Reader, id string, delim rune) (*FileSource, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1 // malformed rows are counted, not fatal
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, core.Errorf(core.CodeProfiling, "source %s is empty", id)
	}
	if err != nil {
		return nil, core.Errorf(core.CodeProfiling, "read header of %s: %w", id, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	src := &FileSource{id: id, columns: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			src.malformed++
			continue
		}
		if len(rec) != len(header) {
			src.malformed++
			continue
		}
		src.rows = append(src.rows, rec)
	}
	if len(src.rows) == 0 {
		return nil, core.Errorf(core.CodeProfiling, "source %s has a header but no rows", id)
	}
	return src, nil
}

// ID implements Source.
func (s *FileSource) ID() string { return s.id }

// Columns implements Source.
func (s *FileSource) Columns() []string { return s.columns }

// Malformed implements Source.
func (s *FileSource) Malformed() int { return s.malformed }

// RowCount returns the number of well-formed rows.
func (s *FileSource) RowCount() int { return len(s.rows) }

// Rows implements Source.
func (s *FileSource) Rows() (Iterator, error) {
	return &sliceIterator{columns: s.columns, rows: s.rows, pos: -1}, nil
}

var _ Source = (*FileSource)(nil)

type sliceIterator struct {
	columns []string
	rows    [][]string
	pos     int
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Value() Row {
	values := make(map[string]string, len(it.columns))
	for i, col := range it.columns {
		values[col] = it.rows[it.pos][i]
	}
	return Row{Index: it.pos, Values: values}
}

func (it *sliceIterator) Err() error   { return nil }
func (it *sliceIterator) Close() error { return nil }

// Memory builds an in-memory source from a header and rows. Rows whose length
// does not match the header are rejected up front.
func Memory(id string, columns []string, rows [][]string) (*FileSource, error) {
	if len(rows) == 0 {
		return nil, core.Errorf(core.CodeProfiling, "source %s is empty", id)
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i, len(r), len(columns))
		}
	}
	return &FileSource{id: id, columns: columns, rows: rows}, nil
}
