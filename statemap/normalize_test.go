package statemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		region string
		want   RegionKey
	}{
		{"pads single digit", "9", "cdmx ", RegionKey{ID: "09", Name: "CDMX"}},
		{"already padded", "09", "CDMX", RegionKey{ID: "09", Name: "CDMX"}},
		{"two digits unchanged", "32", " zac", RegionKey{ID: "32", Name: "ZAC"}},
		{"surrounding spaces on id", " 7 ", "chp", RegionKey{ID: "07", Name: "CHP"}},
		{"float id from spreadsheet", "9.0", "cdmx", RegionKey{ID: "09", Name: "CDMX"}},
		{"empty id", "", "x", RegionKey{ID: "00", Name: "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.id, tt.region, DefaultIDWidth))
		})
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	inputs := [][2]string{{"9", "cdmx "}, {"1", "agu"}, {"15", " Mex "}, {"009", "x"}}
	for _, in := range inputs {
		once := NormalizeKey(in[0], in[1], DefaultIDWidth)
		twice := NormalizeKey(once.ID, once.Name, DefaultIDWidth)
		assert.Equal(t, once, twice, "normalizing %v twice changed the key", in)
	}
}

func TestNormalizeID_Width(t *testing.T) {
	assert.Equal(t, "005", NormalizeID("5", 3))
	assert.Equal(t, "1234", NormalizeID("1234", 2))
}
