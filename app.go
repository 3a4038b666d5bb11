package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kwv/stateboard/statemap"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// App encapsulates the application state and dependencies
type App struct {
	Out        io.Writer
	Options    AppOptions
	Config     *statemap.Config
	Cache      *statemap.SourceCache
	Pipeline   *statemap.Pipeline
	MQTTClient *statemap.MQTTClient
	Publisher  *statemap.SnapshotPublisher
}

// NewApp creates a new App instance writing reports to out.
func NewApp(out io.Writer) *App {
	return &App{Out: out}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.Options = opts
}

// Setup loads .env files and the configuration, then initialises the
// logger. A missing config.yaml at the default location falls back to the
// built-in defaults; an explicitly named file must exist.
func (a *App) Setup() error {
	statemap.LoadEnvFiles(".env.local", ".env")

	path := a.Options.ConfigFile
	if path == defaultConfigFile {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := statemap.LoadConfig(path)
	if err != nil {
		return err
	}
	if a.Options.LogLevel != "" {
		cfg.Log.Level = a.Options.LogLevel
	}
	if a.Options.Port > 0 {
		cfg.Server.Port = a.Options.Port
	}
	if err := statemap.InitLogger(cfg.Log); err != nil {
		return err
	}
	a.Config = cfg

	if path == "" {
		zap.L().Debug("no config file, using defaults")
	} else {
		zap.L().Debug("loaded config", zap.String("path", path))
	}
	return nil
}

// buildPipeline creates the cache and pipeline. sink may be nil.
func (a *App) buildPipeline(sink statemap.SnapshotSink) error {
	a.Cache = statemap.NewSourceCache(a.Config)
	p, err := statemap.NewPipeline(a.Config, a.Cache, sink)
	if err != nil {
		return err
	}
	a.Pipeline = p
	return nil
}

// RunServe loads the sources and serves the dashboard until ctx is done.
func (a *App) RunServe(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "server"))

	client, err := statemap.NewMQTTClient(a.Config.MQTT)
	if err != nil {
		return err
	}
	var sink statemap.SnapshotSink
	if client != nil {
		a.MQTTClient = client
		a.Publisher = statemap.NewSnapshotPublisher(client.Client(), a.Config.MQTT.PublishPrefix)
		a.Publisher.Configure(a.Config.MQTT)
		sink = a.Publisher
		client.Start(ctx)
		defer client.Disconnect()
	}

	if err := a.buildPipeline(sink); err != nil {
		return err
	}
	// Start even when the sources are unreadable; map endpoints answer 503
	// until POST /reload succeeds.
	if err := a.Cache.Load(ctx); err != nil {
		log.Error("initial source load failed", zap.Error(err))
	}

	statemap.MustRegisterMetrics()

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", a.Config.Server.Port),
		Handler:           newHTTPServer(a.Pipeline),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "http server")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// RunRender writes one initiative's map to the output file.
func (a *App) RunRender(ctx context.Context) error {
	code := a.Options.Initiative
	if code == "" {
		code = "i1"
	}
	out := a.Options.Output
	if out == "" {
		out = "map.svg"
	}

	if err := a.buildPipeline(nil); err != nil {
		return err
	}
	res, err := a.Pipeline.Run(ctx, code)
	if err != nil {
		return err
	}
	if res.Warning != nil {
		fmt.Fprintf(a.Out, "warning: %s\n", res.Warning)
	}

	err = writeFile(out, func(w io.Writer) error {
		switch strings.ToLower(filepath.Ext(out)) {
		case ".png":
			return a.Pipeline.RenderPNG(w, res)
		case ".svg":
			return a.Pipeline.RenderSVG(w, res)
		default:
			return eris.Errorf("unsupported output format %q (want .svg or .png)", filepath.Ext(out))
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s: %d regions, %d labels -> %s\n", code, len(res.Dataset.Rows), len(res.Placement.Labels), out)
	return nil
}

// RunValidate checks the join invariants and reports per initiative. It
// fails when any initiative fails.
func (a *App) RunValidate(ctx context.Context) error {
	if err := a.buildPipeline(nil); err != nil {
		return err
	}
	var codes []string
	if a.Options.Initiative != "" {
		codes = []string{a.Options.Initiative}
	}

	reports, err := a.Pipeline.Validate(ctx, codes...)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tSTATUS\tLABELS\tDETAIL")
	failed := 0
	for _, r := range reports {
		status, detail := "ok", ""
		switch {
		case !r.OK:
			status, detail = "FAIL", r.Error
			failed++
		case r.Warning != nil:
			status, detail = "warn", r.Warning.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Code, status, r.Labels, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return eris.Errorf("%d of %d initiative(s) failed validation", failed, len(reports))
	}
	return nil
}

// RunMoto writes the moto status map as GeoJSON or SVG.
func (a *App) RunMoto(ctx context.Context) error {
	out := a.Options.Output
	if out == "" {
		out = "moto.geojson"
	}
	if err := a.buildPipeline(nil); err != nil {
		return err
	}
	statuses, err := motoStatuses(ctx, a.Pipeline)
	if err != nil {
		return err
	}

	err = writeFile(out, func(w io.Writer) error {
		switch strings.ToLower(filepath.Ext(out)) {
		case ".geojson", ".json":
			data, err := statemap.MotoFeatureCollection(statuses).MarshalJSON()
			if err != nil {
				return eris.Wrap(err, "encode moto geojson")
			}
			_, err = w.Write(data)
			return err
		case ".svg":
			return a.Pipeline.Renderer().RenderToSVG(w, statemap.MotoScene(statuses))
		default:
			return eris.Errorf("unsupported output format %q (want .geojson or .svg)", filepath.Ext(out))
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "moto: %d regions -> %s\n", len(statuses), out)
	return nil
}

// RunPrepare converts the raw shapefile into the cleaned geometry file.
func (a *App) RunPrepare() error {
	out := a.Options.Output
	if out == "" {
		out = a.Config.Geometry.Path
	}
	if statemap.IsRemote(out) {
		return eris.Errorf("prepare output must be a local path, got %s", out)
	}

	opts := statemap.DefaultPrepareOptions()
	opts.IDProperty = a.Config.Geometry.IDProperty
	opts.NameProperty = a.Config.Geometry.NameProperty
	opts.IDWidth = a.Config.Join.IDWidth

	report, err := statemap.PrepareShapefile(a.Options.Shapefile, out, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "prepare: %d records, %d dropped, %d regions -> %s\n",
		report.Records, report.Dropped, report.Regions, out)
	return nil
}

// RunInitiatives lists the initiative table.
func (a *App) RunInitiatives() error {
	table, err := a.Config.InitiativeTable()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCOLOR\tNAME")
	for _, ini := range table.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ini.Code, ini.Color, ini.Name)
	}
	return tw.Flush()
}

// RunInitConfig writes the loaded configuration, defaults and environment
// overrides included, to a new YAML file.
func (a *App) RunInitConfig() error {
	out := a.Options.Output
	if out == "" {
		out = defaultConfigFile
	}
	if _, err := os.Stat(out); err == nil {
		return eris.Errorf("%s already exists", out)
	}
	if err := statemap.SaveConfig(out, a.Config); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "config -> %s\n", out)
	return nil
}

// motoStatuses merges the status table onto the cached regions.
func motoStatuses(ctx context.Context, p *statemap.Pipeline) ([]statemap.MotoStatus, error) {
	cache := p.Cache()
	if err := cache.Load(ctx); err != nil {
		return nil, err
	}
	regions, _, err := cache.Tables()
	if err != nil {
		return nil, err
	}
	table, err := cache.MotoTable(ctx)
	if err != nil {
		return nil, err
	}
	cfg := cache.Config()
	return statemap.JoinMoto(regions, table, statemap.JoinOptions{
		IDColumn:   cfg.Attributes.IDColumn,
		NameColumn: cfg.Attributes.NameColumn,
		IDWidth:    cfg.Join.IDWidth,
	})
}

// writeFile creates path and hands it to fn, removing the file if fn fails.
func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
