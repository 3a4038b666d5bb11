package statemap

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	_ "modernc.org/sqlite"
)

// Attribute source formats.
const (
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
	FormatSQLite = "sqlite"
)

// AttributeSource describes where the per-state values live.
type AttributeSource struct {
	Path     string
	Format   string
	Encoding string // csv only; any WHATWG label such as latin1 or windows-1252
	Sheet    string // xlsx only; empty selects the first sheet
	Table    string // sqlite only
}

var sqlIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadAttributes reads an attribute table from src. Column names are trimmed
// and fully blank rows are dropped.
func LoadAttributes(ctx context.Context, src AttributeSource, opts ...FetchOption) (*AttributeTable, error) {
	var (
		t   *AttributeTable
		err error
	)
	switch src.Format {
	case FormatCSV, "":
		var data []byte
		data, err = ReadSource(ctx, src.Path, opts...)
		if err != nil {
			return nil, err
		}
		t, err = ParseCSV(bytes.NewReader(data), src.Encoding)
	case FormatXLSX:
		t, err = ReadXLSX(src.Path, src.Sheet)
	case FormatSQLite:
		t, err = ReadSQLite(ctx, src.Path, src.Table)
	default:
		return nil, eris.Errorf("unsupported attribute format %q", src.Format)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "attribute source %s", src.Path)
	}

	zap.L().Debug("attributes loaded",
		zap.String("component", "attributes"),
		zap.String("path", src.Path),
		zap.Strings("columns", t.Columns),
		zap.Int("rows", len(t.Rows)),
	)
	return t, nil
}

// ParseCSV reads a header row followed by data rows. charset, when set, names
// the source encoding; the default is UTF-8.
func ParseCSV(r io.Reader, charset string) (*AttributeTable, error) {
	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "utf8") {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read rows")
	}
	return tableFromRecords(records)
}

// ReadXLSX reads the named sheet, or the first one, of a workbook.
func ReadXLSX(path, sheetName string) (*AttributeTable, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return tableFromRecords(records)
}

// ReadSQLite reads every column of table as text.
func ReadSQLite(ctx context.Context, path, table string) (*AttributeTable, error) {
	if !sqlIdentPattern.MatchString(table) {
		return nil, eris.Errorf("sqlite: invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, `SELECT * FROM "`+table+`"`)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", table)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: columns")
	}

	records := [][]string{cols}
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			if v.Valid {
				rec[i] = v.String
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate rows")
	}
	return tableFromRecords(records)
}

func tableFromRecords(records [][]string) (*AttributeTable, error) {
	if len(records) == 0 {
		return nil, eris.New("no header row")
	}

	header := make([]string, len(records[0]))
	for i, c := range records[0] {
		c = strings.TrimPrefix(c, "\ufeff")
		header[i] = strings.TrimSpace(c)
	}

	t := &AttributeTable{Columns: header, Rows: make([][]string, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if blankRecord(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
