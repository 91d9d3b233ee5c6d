package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Options selects and parses a reference file.
type Options struct {
	Path     string
	Sheet    string // worksheet for spreadsheets; the first sheet if empty
	Key      string // join key column that must be present, if set
	Encoding string // text encoding for delimited files; UTF-8 if empty
}

// Load reads the whole file at opts.Path. The format is chosen by extension:
// .xlsx/.xlsm spreadsheets, .csv comma-separated and .tsv/.tab tab-separated
// text. The first row is the header and empty cells become NULL. Blank rows
// are skipped.
func Load(opts Options) (*Dataset, error) {
	if opts.Path == "" {
		return nil, errs.Newf(errs.KindDataFormat, "load", "", "reference path is empty")
	}

	var (
		header []string
		rows   [][]any
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(opts.Path)); ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		header, rows, err = readSpreadsheet(opts.Path, opts.Sheet)
	case ".csv":
		header, rows, err = readDelimited(opts.Path, ',', opts.Encoding)
	case ".tsv", ".tab":
		header, rows, err = readDelimited(opts.Path, '\t', opts.Encoding)
	default:
		err = fmt.Errorf("unsupported reference format %q", ext)
	}
	if err != nil {
		return nil, errs.Ensure(errs.KindDataFormat, "load", opts.Path, err)
	}

	ds, err := New(opts.Path, header, rows)
	if err != nil {
		return nil, err
	}
	if opts.Key != "" {
		if _, err := ds.RequireColumn(opts.Key); err != nil {
			return nil, err
		}
	}

	logging.Info("Loaded reference data %s: %d rows, %d columns", filepath.Base(opts.Path), ds.Len(), len(ds.columns))
	return ds, nil
}

func readSpreadsheet(path, sheet string) ([]string, [][]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil, fmt.Errorf("sheet %q not found (have %v)", sheet, f.GetSheetList())
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}
	return split(cells)
}

func readDelimited(path string, comma rune, enc string) ([]string, [][]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	decoder, err := textDecoder(enc)
	if err != nil {
		return nil, nil, err
	}

	r := csv.NewReader(transform.NewReader(file, decoder))
	r.Comma = comma
	r.FieldsPerRecord = -1

	var cells [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		cells = append(cells, rec)
	}
	return split(cells)
}

// textDecoder resolves an encoding label such as "shift_jis", "euc-jp" or
// "windows-1252". UTF-8 input has any byte order mark removed.
func textDecoder(label string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "sjis", "cp932":
		label = "shift_jis"
	}
	e, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q", label)
	}
	return e.NewDecoder(), nil
}

// split separates the header from the data rows, dropping blank rows and
// turning empty cells into nil.
func split(cells [][]string) ([]string, [][]any, error) {
	for len(cells) > 0 && blank(cells[0]) {
		cells = cells[1:]
	}
	if len(cells) == 0 {
		return nil, nil, fmt.Errorf("file has no header row")
	}

	header := cells[0]
	// Trailing empty header cells are layout, not columns.
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}

	rows := make([][]any, 0, len(cells)-1)
	for _, rec := range cells[1:] {
		if blank(rec) {
			continue
		}
		for len(rec) > len(header) && rec[len(rec)-1] == "" {
			rec = rec[:len(rec)-1]
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			if v != "" {
				row[i] = v
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
