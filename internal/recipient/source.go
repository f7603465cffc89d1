package recipient

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrMissingHeaders    = errors.New("recipient file is missing required headers")
	ErrUnsupportedFormat = errors.New("unsupported recipient file format")
)

// RequiredHeaders must all appear in the header row.
var RequiredHeaders = []string{"first_name", "last_name", "profile_url"}

// Columns is the full header layout, in the order samples are written.
var Columns = []string{"first_name", "last_name", "profile_url", "company", "position", "location"}

// ParseError describes one rejected data row. Row is 1-based over data rows
// (the header is not counted).
type ParseError struct {
	Row int
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Result is what a load produced. Errors never abort the load.
type Result struct {
	Recipients []Recipient
	Errors     []*ParseError
	// Truncated is set when rows remained after max recipients were accepted.
	Truncated bool
}

// Load reads recipients from a .csv or .xlsx file, keeping at most max valid
// records (max <= 0 means unbounded).
func Load(path string, max int) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return Result{}, err
		}
		defer f.Close()
		return ReadCSV(f, max)
	case ".xlsx", ".xlsm":
		return loadXLSX(path, max)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV parses a header-first CSV stream.
func ReadCSV(r io.Reader, max int) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("%w: empty file", ErrMissingHeaders)
	}
	if err != nil {
		return Result{}, err
	}

	rows := &rowReader{
		next: func() ([]string, error) {
			rec, err := cr.Read()
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, rowError{err: err}
			}
			return rec, err
		},
	}
	return collect(header, rows, max)
}

func loadXLSX(path string, max int) (Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, fmt.Errorf("%w: workbook has no sheets", ErrMissingHeaders)
	}
	it, err := f.Rows(sheets[0])
	if err != nil {
		return Result{}, err
	}
	defer it.Close()

	if !it.Next() {
		return Result{}, fmt.Errorf("%w: empty sheet", ErrMissingHeaders)
	}
	header, err := it.Columns()
	if err != nil {
		return Result{}, err
	}

	rows := &rowReader{
		next: func() ([]string, error) {
			if !it.Next() {
				if err := it.Error(); err != nil {
					return nil, err
				}
				return nil, io.EOF
			}
			return it.Columns()
		},
	}
	return collect(header, rows, max)
}

// rowError is a malformed row that should be reported, not fatal.
type rowError struct{ err error }

func (e rowError) Error() string { return e.err.Error() }

type rowReader struct {
	next func() ([]string, error)
}

func collect(header []string, rows *rowReader, max int) (Result, error) {
	idx := indexHeader(header)
	var missing []string
	for _, h := range RequiredHeaders {
		if _, ok := idx[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingHeaders, strings.Join(missing, ", "))
	}

	var res Result
	for rowNum := 1; ; rowNum++ {
		rec, err := rows.next()
		if errors.Is(err, io.EOF) {
			break
		}
		var re rowError
		if errors.As(err, &re) {
			res.Errors = append(res.Errors, &ParseError{Row: rowNum, Err: re.err})
			continue
		}
		if err != nil {
			return res, err
		}
		// Fully empty lines never reach here from encoding/csv; a row of
		// empty cells (",,") is still validated and reported.
		if len(rec) == 0 {
			continue
		}

		if max > 0 && len(res.Recipients) >= max {
			res.Truncated = true
			break
		}

		r, err := New(Fields{
			FirstName:  cell(rec, idx, "first_name"),
			LastName:   cell(rec, idx, "last_name"),
			ProfileURL: cell(rec, idx, "profile_url"),
			Company:    cell(rec, idx, "company"),
			Position:   cell(rec, idx, "position"),
			Location:   cell(rec, idx, "location"),
		})
		if err != nil {
			res.Errors = append(res.Errors, &ParseError{Row: rowNum, Err: err})
			continue
		}
		res.Recipients = append(res.Recipients, r)
	}
	return res, nil
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		k := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if k == "" {
			continue
		}
		if _, dup := idx[k]; !dup {
			idx[k] = i
		}
	}
	return idx
}

func cell(rec []string, idx map[string]int, key string) string {
	i, ok := idx[key]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
