package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	"github.com/dhanek/virtual-elevation-analyzer-web/session"
)

// batchCommand fans a directory of FIT files across a fixed worker
// pool, one evaluate per file, writing a "<file>-ve.json" result
// alongside each input. Grounded directly on the teacher's
// convert_gsf_list: 2*NumCPU workers, a pond.Pool bound to a
// signal.NotifyContext so Ctrl+C drains in-flight work instead of
// killing it mid-write.
func batchCommand() *cli.Command {
	flags := append(evaluateFlags(), &cli.StringFlag{Name: "pattern", Value: "*.fit", Usage: "glob pattern for FIT files"})
	return &cli.Command{
		Name:      "batch",
		Usage:     "evaluate every matching FIT file in a directory across a worker pool",
		ArgsUsage: "<dir>",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			dir := c.Args().First()
			if dir == "" {
				return cli.Exit("batch: a directory is required", 1)
			}
			matches, err := filepath.Glob(filepath.Join(dir, c.String("pattern")))
			if err != nil {
				return err
			}
			fmt.Println("files to process:", len(matches))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			metrics := session.NewMetrics()
			n := runtime.NumCPU() * 2
			pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(ctx))
			defer pool.StopAndWait()

			for _, path := range matches {
				p := path
				pool.Submit(func() {
					analysis, err := runOne(c, p)
					if err != nil {
						metrics.FilesFailed.Inc()
						fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
						return
					}
					metrics.FilesProcessed.Inc()
					printAnalysis(p, analysis)
					writeBatchResult(p, analysis)
				})
			}

			pool.StopAndWait()
			metrics.LastRunUnix.SetToCurrentTime()
			return nil
		},
	}
}

func writeBatchResult(path string, a session.Analysis) {
	out := path + "-ve.json"
	jsn, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return
	}
	if err := os.WriteFile(out, jsn, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
	}
}
