package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via -ldflags
var Version = "dev"

const defaultConfigFile = "config.yaml"

// AppOptions carries the command line into the application.
type AppOptions struct {
	ConfigFile string
	LogLevel   string
	Initiative string
	Output     string
	Shapefile  string
	Port       int
}

// Application is what the CLI drives. *App implements it; tests substitute a
// recorder.
type Application interface {
	ApplyOptions(opts AppOptions)
	Setup() error
	RunServe(ctx context.Context) error
	RunRender(ctx context.Context) error
	RunValidate(ctx context.Context) error
	RunMoto(ctx context.Context) error
	RunPrepare() error
	RunInitiatives() error
	RunInitConfig() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, NewApp(os.Stdout)); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree for app and executes args.
func run(ctx context.Context, args []string, out io.Writer, app Application) error {
	root := newRootCmd(app)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

// newRootCmd wires the subcommands to app. Flags shared by several
// subcommands bind to the same option field, so their defaults are empty and
// resolved by the application per command.
func newRootCmd(app Application) *cobra.Command {
	var opts AppOptions

	root := &cobra.Command{
		Use:     "stateboard",
		Short:   "Mexican state choropleth dashboard",
		Long:    "Joins per-state initiative values onto state polygons, places labels and serves or renders the resulting maps.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.ApplyOptions(opts)
			if err := app.Setup(); err != nil {
				return eris.Wrap(err, "setup")
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigFile, "config", defaultConfigFile, "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunServe(cmd.Context())
		},
	}
	serve.Flags().IntVar(&opts.Port, "port", 0, "HTTP port (default from config)")

	render := &cobra.Command{
		Use:   "render",
		Short: "Render one initiative's choropleth to SVG or PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunRender(cmd.Context())
		},
	}
	render.Flags().StringVarP(&opts.Initiative, "initiative", "i", "", "Initiative code (default i1)")
	render.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file; the extension picks the format (default map.svg)")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the join invariants for one or all initiatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunValidate(cmd.Context())
		},
	}
	validate.Flags().StringVarP(&opts.Initiative, "initiative", "i", "", "Initiative code (default all)")

	moto := &cobra.Command{
		Use:   "moto",
		Short: "Write the moto regulatory status map as GeoJSON or SVG",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunMoto(cmd.Context())
		},
	}
	moto.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file, .geojson, .json or .svg (default moto.geojson)")

	prepare := &cobra.Command{
		Use:   "prepare",
		Short: "Convert the raw state shapefile into the cleaned GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunPrepare()
		},
	}
	prepare.Flags().StringVar(&opts.Shapefile, "shapefile", "map/dest_2010gw.shp", "Input shapefile (.shp with .shx and .dbf alongside)")
	prepare.Flags().StringVarP(&opts.Output, "output", "o", "", "Output GeoJSON (default: configured geometry path)")

	initiatives := &cobra.Command{
		Use:   "initiatives",
		Short: "List the configured initiatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunInitiatives()
		},
	}

	initConfig := &cobra.Command{
		Use:   "init-config",
		Short: "Write the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunInitConfig()
		},
	}
	initConfig.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file, must not exist (default config.yaml)")

	root.AddCommand(serve, render, validate, moto, prepare, initiatives, initConfig)
	return root
}
