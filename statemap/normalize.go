package statemap

import (
	"strconv"
	"strings"
)

// DefaultIDWidth is the zero-padded width of a region id.
const DefaultIDWidth = 2

// NormalizeID trims the id and left-pads it with zeros to width. Numeric ids
// written as floats ("9.0") are reduced to their integer form first, since
// spreadsheet and database sources often store them that way.
func NormalizeID(id string, width int) string {
	id = strings.TrimSpace(id)
	if f, err := strconv.ParseFloat(id, 64); err == nil && f == float64(int64(f)) && strings.ContainsAny(id, ".eE") {
		id = strconv.FormatInt(int64(f), 10)
	}
	if len(id) >= width {
		return id
	}
	return strings.Repeat("0", width-len(id)) + id
}

// NormalizeName trims and upper-cases a region name.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// NormalizeKey builds the composite key. It is idempotent.
func NormalizeKey(id, name string, width int) RegionKey {
	return RegionKey{ID: NormalizeID(id, width), Name: NormalizeName(name)}
}
