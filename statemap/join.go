package statemap

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// JoinOptions names the key columns and the invariants of a join.
type JoinOptions struct {
	IDColumn     string
	NameColumn   string
	ExpectedRows int
	IDWidth      int
}

// DefaultJoinOptions matches the cleaned state geometry and datos.csv layout.
func DefaultJoinOptions() JoinOptions {
	return JoinOptions{
		IDColumn:     "ent",
		NameColumn:   "entidad",
		ExpectedRows: 32,
		IDWidth:      DefaultIDWidth,
	}
}

// MissingColumnsError is returned when the attribute table lacks a key column
// or the initiative column.
type MissingColumnsError struct {
	Missing   []string `json:"missing"`
	Available []string `json:"available"`
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("attribute table is missing column(s) %s; available columns: %s",
		strings.Join(quoteAll(e.Missing), ", "), strings.Join(quoteAll(e.Available), ", "))
}

// RowCountError is returned when the joined dataset does not have exactly one
// row per expected region.
type RowCountError struct {
	Expected int `json:"expected"`
	Actual   int `json:"actual"`
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("joined dataset has %d rows, expected %d", e.Actual, e.Expected)
}

// Join left-joins the initiative column code of attrs onto regions by the
// normalised (id, name) key.
//
// A missing column returns *MissingColumnsError and nothing else. Geometry
// keys with no attribute row produce a CoverageWarning and a nil value. A row
// count other than opts.ExpectedRows returns *RowCountError; the coverage
// warning, if any, is still returned alongside it. Inputs are not modified.
func Join(regions *RegionSet, attrs *AttributeTable, code string, opts JoinOptions) (*JoinedDataset, *CoverageWarning, error) {
	if opts.IDWidth <= 0 {
		opts.IDWidth = DefaultIDWidth
	}

	required := []string{opts.IDColumn, opts.NameColumn, code}
	var missing []string
	for _, col := range required {
		if attrs.ColumnIndex(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		available := make([]string, len(attrs.Columns))
		copy(available, attrs.Columns)
		return nil, nil, &MissingColumnsError{Missing: missing, Available: available}
	}

	idIdx := attrs.ColumnIndex(opts.IDColumn)
	nameIdx := attrs.ColumnIndex(opts.NameColumn)
	valIdx := attrs.ColumnIndex(code)

	index := make(map[RegionKey][]int, len(attrs.Rows))
	for i := range attrs.Rows {
		k := NormalizeKey(attrs.Cell(i, idIdx), attrs.Cell(i, nameIdx), opts.IDWidth)
		index[k] = append(index[k], i)
	}

	log := zap.L().With(zap.String("component", "join"), zap.String("initiative", code))

	var warning *CoverageWarning
	seen := make(map[RegionKey]bool)
	ds := &JoinedDataset{Initiative: code, Rows: make([]JoinedRow, 0, regions.Len())}

	for _, r := range regions.Regions {
		k := NormalizeKey(r.Key.ID, r.Key.Name, opts.IDWidth)
		matches := index[k]
		if len(matches) == 0 {
			if !seen[k] {
				seen[k] = true
				if warning == nil {
					warning = &CoverageWarning{Initiative: code}
				}
				warning.MissingKeys = append(warning.MissingKeys, k)
			}
			ds.Rows = append(ds.Rows, JoinedRow{Key: k, Geometry: r.Geometry})
			continue
		}
		for _, m := range matches {
			ds.Rows = append(ds.Rows, JoinedRow{
				Key:      k,
				Geometry: r.Geometry,
				Value:    parseValue(attrs.Cell(m, valIdx), log),
			})
		}
	}

	if warning != nil {
		log.Warn("regions missing from attributes",
			zap.Int("count", len(warning.MissingKeys)),
			zap.Stringers("keys", warning.MissingKeys),
		)
	}

	if len(ds.Rows) != opts.ExpectedRows {
		return nil, warning, &RowCountError{Expected: opts.ExpectedRows, Actual: len(ds.Rows)}
	}
	return ds, warning, nil
}

// parseValue converts a cell to a value. Blank and NA-style cells are null;
// so are cells that do not parse as numbers.
func parseValue(cell string, log *zap.Logger) *float64 {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null", "none":
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		log.Debug("non-numeric attribute value", zap.String("cell", cell))
		return nil
	}
	return &v
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strconv.Quote(s)
	}
	return out
}
