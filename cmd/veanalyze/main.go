package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/dhanek/virtual-elevation-analyzer-web/dem"
	"github.com/dhanek/virtual-elevation-analyzer-web/fit"
	"github.com/dhanek/virtual-elevation-analyzer-web/format"
	"github.com/dhanek/virtual-elevation-analyzer-web/session"
)

func main() {
	app := &cli.App{
		Name:  "veanalyze",
		Usage: "decode FIT rides, sample elevation models, and evaluate Virtual Elevation fit",
		Commands: []*cli.Command{
			validateCommand(),
			parseCommand(),
			demInfoCommand(),
			evaluateCommand(),
			batchCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "check a FIT file's signature and header without full decoding",
		ArgsUsage: "<fit-file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("validate: a FIT file path is required", 1)
			}
			blob, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err := fit.ValidateFIT(blob); err != nil {
				return cli.Exit(err, 1)
			}
			fmt.Println("valid")
			return nil
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "decode a FIT file and print its summary statistics as JSON",
		ArgsUsage: "<fit-file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("parse: a FIT file path is required", 1)
			}
			blob, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			result, err := fit.ParseFile(blob)
			if err != nil {
				return cli.Exit(err, 1)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Statistics)
		},
	}
}

func demInfoCommand() *cli.Command {
	return &cli.Command{
		Name:      "dem-info",
		Usage:     "print a GeoTIFF DEM's bounds, datum notes, and an optional sample lookup",
		ArgsUsage: "<tiff-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "world", Usage: "path to a .tfw/.wld world-file sidecar"},
			&cli.StringFlag{Name: "prj", Usage: "path to a .prj WKT sidecar"},
			&cli.Float64Flag{Name: "lat", Usage: "latitude for a sample lookup"},
			&cli.Float64Flag{Name: "lon", Usage: "longitude for a sample lookup"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("dem-info: a GeoTIFF path is required", 1)
			}
			d, err := openDEM(path, c.String("world"), c.String("prj"), session.DefaultConfig())
			if err != nil {
				return cli.Exit(err, 1)
			}

			minX, minY, maxX, maxY := d.Bounds()
			fmt.Printf("size: %d x %d\n", d.Width, d.Height)
			fmt.Printf("bounds: [%.4f, %.4f, %.4f, %.4f]\n", minX, minY, maxX, maxY)
			if notes := d.DatumNote(); notes != "" {
				fmt.Println("notes:", notes)
			}
			if c.IsSet("lat") && c.IsSet("lon") {
				v := d.Lookup(c.Float64("lat"), c.Float64("lon"))
				fmt.Printf("elevation at (%.5f, %.5f): %.2f m\n", c.Float64("lat"), c.Float64("lon"), v)
			}
			return nil
		},
	}
}

func openDEM(path, worldPath, prjPath string, cfg session.Config) (*dem.Dem, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	opts := dem.Options{Filename: path}
	if worldPath != "" {
		w, err := os.ReadFile(worldPath)
		if err != nil {
			return nil, err
		}
		opts.World = string(w)
	}
	if prjPath != "" {
		p, err := os.ReadFile(prjPath)
		if err != nil {
			return nil, err
		}
		opts.PRJ = string(p)
	}
	if cfg.NodataOverride != nil {
		opts.NodataOverride = *cfg.NodataOverride
		opts.HasNodataOverride = true
	}

	return dem.Open(blob, opts)
}

func evaluateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "path to a YAML analysis config"},
		&cli.Float64Flag{Name: "cda", Usage: "coefficient of drag area (m^2)", Required: true},
		&cli.Float64Flag{Name: "crr", Usage: "coefficient of rolling resistance", Required: true},
		&cli.Float64Flag{Name: "mass", Usage: "system mass override (kg)"},
		&cli.Float64Flag{Name: "rho", Usage: "air density override (kg/m^3)"},
		&cli.StringFlag{Name: "dem", Usage: "GeoTIFF DEM to derive ground-truth elevation from"},
		&cli.StringFlag{Name: "dem-world", Usage: "world-file sidecar for --dem"},
		&cli.StringFlag{Name: "dem-prj", Usage: "WKT sidecar for --dem"},
		&cli.IntFlag{Name: "trim-start", Usage: "first sample index of the fit window"},
		&cli.IntFlag{Name: "trim-end", Usage: "last sample index of the fit window", Value: -1},
	}
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Usage:     "run the Virtual Elevation engine at one (CdA, Crr) point and print the Result",
		ArgsUsage: "<fit-file>",
		Flags:     evaluateFlags(),
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("evaluate: a FIT file path is required", 1)
			}
			analysis, err := runOne(c, path)
			if err != nil {
				return cli.Exit(err, 1)
			}
			printAnalysis(path, analysis)
			return nil
		},
	}
}

func runOne(c *cli.Context, path string) (session.Analysis, error) {
	cfg, err := session.LoadConfig(c.String("config"))
	if err != nil {
		return session.Analysis{}, err
	}
	if c.IsSet("mass") {
		cfg.SystemMass = c.Float64("mass")
	}

	var env session.Environment
	if c.IsSet("rho") {
		rho := c.Float64("rho")
		env.RhoOverride = &rho
	}
	if c.IsSet("dem") {
		d, err := openDEM(c.String("dem"), c.String("dem-world"), c.String("dem-prj"), cfg)
		if err != nil {
			return session.Analysis{}, err
		}
		env.DEM = d
	}

	trimEnd := c.Int("trim-end")
	return session.RunAnalysis(path, env, cfg, c.Float64("cda"), c.Float64("crr"), c.Int("trim-start"), trimEnd)
}

func printAnalysis(path string, a session.Analysis) {
	fmt.Println("file:", path)
	fmt.Println("records:", a.Parsed.RecordCount, "laps:", a.Parsed.LapCount,
		"duration:", format.Duration(float64(a.Parsed.DurationSeconds)),
		"distance:", format.Distance(a.Parsed.TotalDistanceM))
	if a.Parsed.RecoveredErrors > 0 {
		fmt.Println("recovered desync events:", a.Parsed.RecoveredErrors)
	}
	fmt.Printf("rho: %.4f kg/m^3\n", a.RhoKgM3)
	fmt.Printf("r2: %.4f  rmse: %.3f m\n", a.VE.R2, a.VE.RMSE)
	fmt.Printf("ve elevation diff: %.2f m  actual elevation diff: %.2f m\n",
		a.VE.VeElevationDiff, a.VE.ActualElevationDiff)
	if a.VE.VirtualDistanceAir != 0 {
		fmt.Printf("virtual distance air/ground: %.1f / %.1f m (%.2f%%)\n",
			a.VE.VirtualDistanceAir, a.VE.VirtualDistanceGround, a.VE.VdDifferencePercent)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "expose batch-run Prometheus metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":9300", Usage: "listen address"},
		},
		Action: func(c *cli.Context) error {
			session.NewMetrics()
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log := session.NewLogger("info")
			log.Infof("serving metrics on %s/metrics", c.String("addr"))
			return http.ListenAndServe(c.String("addr"), mux)
		},
	}
}
