package statemap

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnknownInitiative is returned for a code not in the initiative table.
var ErrUnknownInitiative = eris.New("unknown initiative")

// Result is the outcome of one successful pipeline run.
type Result struct {
	Initiative Initiative       `json:"initiative"`
	Dataset    *JoinedDataset   `json:"dataset"`
	Placement  LabelPlacement   `json:"placement"`
	Warning    *CoverageWarning `json:"warning,omitempty"`
	Elapsed    time.Duration    `json:"elapsed"`
}

// Pipeline runs join, label placement and rendering for one initiative at a
// time against the shared source cache.
type Pipeline struct {
	cache       *SourceCache
	initiatives *InitiativeTable
	join        JoinOptions
	minSep      float64
	missing     string
	renderer    *VectorRenderer
	sink        SnapshotSink
	log         *zap.Logger
}

// NewPipeline wires a pipeline from cfg. sink may be nil.
func NewPipeline(cfg *Config, cache *SourceCache, sink SnapshotSink) (*Pipeline, error) {
	table, err := cfg.InitiativeTable()
	if err != nil {
		return nil, err
	}
	renderer, err := NewVectorRenderer(cfg.Render, cfg.Labels)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cache:       cache,
		initiatives: table,
		join: JoinOptions{
			IDColumn:     cfg.Attributes.IDColumn,
			NameColumn:   cfg.Attributes.NameColumn,
			ExpectedRows: cfg.Join.ExpectedRows,
			IDWidth:      cfg.Join.IDWidth,
		},
		minSep:   cfg.Labels.MinSeparation,
		missing:  cfg.Render.MissingColor,
		renderer: renderer,
		sink:     sink,
		log:      zap.L().With(zap.String("component", "pipeline")),
	}, nil
}

// Initiatives returns the initiative table the pipeline serves.
func (p *Pipeline) Initiatives() *InitiativeTable {
	return p.initiatives
}

// Cache returns the source cache the pipeline reads from.
func (p *Pipeline) Cache() *SourceCache {
	return p.cache
}

// Renderer returns the configured renderer.
func (p *Pipeline) Renderer() *VectorRenderer {
	return p.renderer
}

// Run joins the initiative column onto the cached regions and places labels.
// Validation failures come back as *MissingColumnsError or *RowCountError;
// a coverage warning is carried in the result.
func (p *Pipeline) Run(ctx context.Context, code string) (*Result, error) {
	start := time.Now()

	ini, ok := p.initiatives.ByCode(code)
	if !ok {
		return nil, eris.Wrapf(ErrUnknownInitiative, "initiative %q", code)
	}
	if err := p.cache.Load(ctx); err != nil {
		PipelineRunsTotal.WithLabelValues(code, "error").Inc()
		return nil, err
	}
	regions, attrs, err := p.cache.Tables()
	if err != nil {
		PipelineRunsTotal.WithLabelValues(code, "error").Inc()
		return nil, err
	}

	ds, warning, err := Join(regions, attrs, code, p.join)
	if err != nil {
		PipelineRunsTotal.WithLabelValues(code, resultLabel(err)).Inc()
		p.log.Error("join failed", zap.String("initiative", code), zap.Error(err))
		return nil, err
	}

	res := &Result{
		Initiative: ini,
		Dataset:    ds,
		Placement:  PlaceLabels(ds, p.minSep),
		Warning:    warning,
	}
	res.Elapsed = time.Since(start)

	missing := 0
	if warning != nil {
		missing = len(warning.MissingKeys)
	}
	PipelineRunsTotal.WithLabelValues(code, "ok").Inc()
	PipelineRunSeconds.WithLabelValues(code).Observe(res.Elapsed.Seconds())
	CoverageMissingRegions.WithLabelValues(code).Set(float64(missing))
	LabelsPlaced.WithLabelValues(code).Set(float64(len(res.Placement.Labels)))

	p.log.Debug("pipeline run",
		zap.String("initiative", code),
		zap.Int("rows", len(ds.Rows)),
		zap.Int("labels", len(res.Placement.Labels)),
		zap.Int("rejected", res.Placement.Rejected),
		zap.Duration("elapsed", res.Elapsed),
	)

	p.publish(res)
	return res, nil
}

// publish hands the run summary to the sink. Failures are logged only.
func (p *Pipeline) publish(res *Result) {
	if p.sink == nil {
		SnapshotsPublishedTotal.WithLabelValues("skipped").Inc()
		return
	}
	if err := p.sink.PublishSnapshot(NewSnapshot(res)); err != nil {
		SnapshotsPublishedTotal.WithLabelValues("error").Inc()
		p.log.Warn("snapshot publish failed", zap.String("initiative", res.Initiative.Code), zap.Error(err))
		return
	}
	SnapshotsPublishedTotal.WithLabelValues("ok").Inc()
}

// Scene builds the choropleth scene for a result.
func (p *Pipeline) Scene(res *Result) (Scene, error) {
	scale, err := NewColorScale(res.Initiative.Color, p.missing)
	if err != nil {
		return Scene{}, err
	}
	return ChoroplethScene(res.Dataset, scale, res.Placement.Labels), nil
}

// RenderSVG writes the choropleth for res as SVG.
func (p *Pipeline) RenderSVG(w io.Writer, res *Result) error {
	sc, err := p.Scene(res)
	if err != nil {
		return err
	}
	return p.renderer.RenderToSVG(w, sc)
}

// RenderPNG writes the choropleth for res as PNG.
func (p *Pipeline) RenderPNG(w io.Writer, res *Result) error {
	sc, err := p.Scene(res)
	if err != nil {
		return err
	}
	return p.renderer.RenderToPNG(w, sc)
}

// Reload re-reads the source tables.
func (p *Pipeline) Reload(ctx context.Context) error {
	if err := p.cache.Reload(ctx); err != nil {
		SourceReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	SourceReloadsTotal.WithLabelValues("ok").Inc()
	return nil
}

// ValidationReport is the outcome of validating one initiative.
type ValidationReport struct {
	Code    string           `json:"code"`
	OK      bool             `json:"ok"`
	Labels  int              `json:"labels"`
	Warning *CoverageWarning `json:"warning,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Validate runs every listed initiative, or all of them when codes is empty,
// without rendering. A report is returned for each; err is non-nil only
// when the sources cannot be loaded.
func (p *Pipeline) Validate(ctx context.Context, codes ...string) ([]ValidationReport, error) {
	if len(codes) == 0 {
		for _, ini := range p.initiatives.List() {
			codes = append(codes, ini.Code)
		}
	}
	if err := p.cache.Load(ctx); err != nil {
		return nil, err
	}

	reports := make([]ValidationReport, 0, len(codes))
	for _, code := range codes {
		r := ValidationReport{Code: code}
		res, err := p.Run(ctx, code)
		if err != nil {
			r.Error = err.Error()
		} else {
			r.OK = true
			r.Labels = len(res.Placement.Labels)
			r.Warning = res.Warning
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func resultLabel(err error) string {
	var mce *MissingColumnsError
	var rce *RowCountError
	switch {
	case errors.As(err, &mce):
		return "missing_columns"
	case errors.As(err, &rce):
		return "row_count"
	default:
		return "error"
	}
}
