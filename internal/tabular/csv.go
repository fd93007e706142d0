package tabular

// csv.go reads CSV uploads. It tolerates the usual artifacts of files that
// passed through Excel or Windows tooling (UTF-8 BOM, stray encodings, lazy
// quoting) but rejects structurally broken input: missing header, rows whose
// column count disagrees with the header, empty files.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"
)

// Options controls how an uploaded file is parsed.
type Options struct {
	// Delimiter is the CSV field separator. Zero means comma.
	Delimiter rune

	// MaxRows caps the number of data rows read. Zero means unlimited.
	MaxRows int
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads an uploaded file into an UploadedTable, dispatching on the file
// name extension. The reader is consumed exactly once.
func Load(name string, r io.Reader, opts Options) (*UploadedTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{File: name, Reason: "read: " + err.Error()}
	}
	if len(data) == 0 {
		return nil, &ParseError{File: name, Reason: "empty file"}
	}

	switch DetectFormat(name) {
	case FormatExcel:
		return loadExcel(name, data, opts)
	default:
		return loadCSV(name, data, opts)
	}
}

func loadCSV(name string, data []byte, opts Options) (*UploadedTable, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}
	r.LazyQuotes = true
	// Column count enforcement happens in finishTable so the error carries
	// the offending line number and file name.
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &ParseError{File: name, Line: perr.Line, Reason: perr.Err.Error()}
		}
		return nil, &ParseError{File: name, Reason: err.Error()}
	}
	if len(records) == 0 {
		return nil, &ParseError{File: name, Reason: "empty file"}
	}
	if len(records) < 2 {
		return nil, &ParseError{File: name, Reason: "file has a header but no data rows"}
	}

	dataRows := records[1:]
	if opts.MaxRows > 0 && len(dataRows) > opts.MaxRows {
		dataRows = dataRows[:opts.MaxRows]
	}

	return finishTable(name, records[0], dataRows, 2)
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode replacement
// rune so downstream string handling never sees broken encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
