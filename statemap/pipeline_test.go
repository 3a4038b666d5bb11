package statemap

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) PublishSnapshot(s Snapshot) error {
	args := m.Called(s)
	return args.Error(0)
}

// testPipeline returns a pipeline over n grid regions whose attribute table
// carries i1 for every region and i2 for all but the last, whose cell is
// empty.
func testPipeline(t *testing.T, n int, sink SnapshotSink) *Pipeline {
	t.Helper()
	regions := gridRegions(n)
	keys := keysOf(regions)

	attrs := &AttributeTable{Columns: []string{"ent", "entidad", "i1", "i2"}}
	for i, k := range keys {
		i2 := "0.5"
		if i == len(keys)-1 {
			i2 = ""
		}
		attrs.Rows = append(attrs.Rows, []string{k.ID, k.Name, "1", i2})
	}

	cfg := DefaultConfig()
	cfg.Join.ExpectedRows = n
	cache := NewSourceCacheFrom(cfg, regions, attrs)

	p, err := NewPipeline(cfg, cache, sink)
	require.NoError(t, err)
	return p
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestPipeline_Run(t *testing.T) {
	sink := &mockSink{}
	sink.On("PublishSnapshot", mock.MatchedBy(func(s Snapshot) bool { return s.Code == "i1" })).Return(nil)

	p := testPipeline(t, 4, sink)
	res, err := p.Run(context.Background(), "i1")
	require.NoError(t, err)

	assert.Equal(t, "i1", res.Initiative.Code)
	assert.Len(t, res.Dataset.Rows, 4)
	assert.Len(t, res.Placement.Labels, 4)
	assert.Nil(t, res.Warning)
	sink.AssertExpectations(t)
}

func TestPipeline_RunNullCellIsNotLabelled(t *testing.T) {
	p := testPipeline(t, 4, nil)
	res, err := p.Run(context.Background(), "i2")
	require.NoError(t, err)

	assert.Nil(t, res.Warning, "a null cell is not a coverage gap")
	assert.Len(t, res.Placement.Labels, 3)
	assert.Equal(t, 1, res.Placement.Ineligible)
}

func TestPipeline_RunUnknownInitiative(t *testing.T) {
	p := testPipeline(t, 4, nil)
	_, err := p.Run(context.Background(), "i42")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownInitiative))
}

func TestPipeline_RunMissingColumn(t *testing.T) {
	p := testPipeline(t, 4, nil)
	// i3 is a known initiative but the fixture table has no i3 column.
	_, err := p.Run(context.Background(), "i3")

	var mce *MissingColumnsError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"i3"}, mce.Missing)
	assert.Contains(t, mce.Available, "i1")
}

func TestPipeline_RunRowCountMismatchDoesNotPublish(t *testing.T) {
	sink := &mockSink{}
	p := testPipeline(t, 4, sink)
	p.join.ExpectedRows = 32

	res, err := p.Run(context.Background(), "i1")
	assert.Nil(t, res)
	var rce *RowCountError
	require.True(t, errors.As(err, &rce))
	assert.Equal(t, 4, rce.Actual)
	sink.AssertNotCalled(t, "PublishSnapshot", mock.Anything)
}

func TestPipeline_PublishFailureIsNotFatal(t *testing.T) {
	sink := &mockSink{}
	sink.On("PublishSnapshot", mock.Anything).Return(errors.New("broker down"))

	p := testPipeline(t, 2, sink)
	res, err := p.Run(context.Background(), "i1")
	require.NoError(t, err)
	assert.NotNil(t, res)
	sink.AssertNumberOfCalls(t, "PublishSnapshot", 1)
}

func TestPipeline_RunNotLoaded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Geometry.Path = "/nonexistent.geojson"
	p, err := NewPipeline(cfg, NewSourceCache(cfg), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "i1")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Render
// ---------------------------------------------------------------------------

func TestPipeline_Render(t *testing.T) {
	p := testPipeline(t, 4, nil)
	res, err := p.Run(context.Background(), "i1")
	require.NoError(t, err)

	var svgBuf bytes.Buffer
	require.NoError(t, p.RenderSVG(&svgBuf, res))
	assert.True(t, strings.Contains(svgBuf.String(), "<svg"))

	var pngBuf bytes.Buffer
	require.NoError(t, p.RenderPNG(&pngBuf, res))
	_, err = png.Decode(&pngBuf)
	assert.NoError(t, err)
}

func TestPipeline_SceneUsesInitiativeColor(t *testing.T) {
	p := testPipeline(t, 2, nil)
	res, err := p.Run(context.Background(), "i1")
	require.NoError(t, err)

	sc, err := p.Scene(res)
	require.NoError(t, err)
	require.Len(t, sc.Shapes, 2)
	assert.Equal(t, strings.ToUpper(res.Initiative.Color), HexColor(sc.Shapes[0].Fill), "value 1 is the full initiative colour")
}

// ---------------------------------------------------------------------------
// Validate / Reload
// ---------------------------------------------------------------------------

func TestPipeline_Validate(t *testing.T) {
	p := testPipeline(t, 4, nil)

	reports, err := p.Validate(context.Background(), "i1", "i3")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.True(t, reports[0].OK)
	assert.Equal(t, 4, reports[0].Labels)
	assert.False(t, reports[1].OK)
	assert.Contains(t, reports[1].Error, "missing column")
}

func TestPipeline_ValidateAll(t *testing.T) {
	p := testPipeline(t, 4, nil)
	reports, err := p.Validate(context.Background())
	require.NoError(t, err)
	assert.Len(t, reports, p.Initiatives().Len())
}

func TestPipeline_ReloadFailure(t *testing.T) {
	p := testPipeline(t, 4, nil)
	p.cache.cfg.Geometry.Path = "/nonexistent.geojson"

	assert.Error(t, p.Reload(context.Background()))
	_, err := p.Run(context.Background(), "i1")
	assert.NoError(t, err, "failed reload keeps the previous tables")
}
