// Command octdisp reconstructs OCT A-scans from raw spectra and estimates
// dispersion compensation coefficients.
//
// Usage:
//
//	octdisp [global flags] estimate --file raw.bin [flags]
//	octdisp [global flags] process --file raw.bin --out ascans.csv [flags]
//
// Acquisition geometry and processing parameters come from the settings
// file (--settings) and can be overridden with flags.
//
// Examples:
//
//	octdisp estimate -f volume.raw --report dispersion.html
//	octdisp --settings ~/.config/settings.ini estimate -f volume.raw --apply
//	octdisp process -f volume.raw --d2 12.5 --d3 -3 -o ascans.csv
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	var opts globalOptions
	var est estimateOptions
	var proc processOptions

	app := &cli.App{
		Name:                 "octdisp",
		Usage:                "OCT A-scan reconstruction and dispersion estimation",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "settings",
				Aliases:     []string{"s"},
				Usage:       "Settings file (default: user config dir)",
				Destination: &opts.settingsPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Destination: &opts.logLevel,
			},
		},
		Before: func(cCtx *cli.Context) error {
			return opts.setupLogging()
		},
		Commands: []*cli.Command{
			{
				Name:    "estimate",
				Aliases: []string{"e"},
				Usage:   "Estimate d2 and d3 from one frame of a raw file",
				Action: func(cCtx *cli.Context) error {
					return runEstimate(cCtx.Context, &opts, &est)
				},
				Flags: append(geometryFlags(&opts), []cli.Flag{
					&cli.IntFlag{
						Name:        "frame",
						Usage:       "Frame number within a buffer",
						Value:       -1,
						Destination: &est.frameNr,
					},
					&cli.IntFlag{
						Name:        "buffer",
						Usage:       "Buffer number within a volume (-1 for any)",
						Value:       -2,
						Destination: &est.bufferNr,
					},
					&cli.IntFlag{
						Name:        "samples",
						Usage:       "Candidates per sweep",
						Destination: &est.samples,
					},
					&cli.StringFlag{
						Name:        "metric",
						Usage:       metricUsage(),
						Destination: &est.metric,
					},
					&cli.BoolFlag{
						Name:        "linear",
						Usage:       "Score linear instead of log-compressed A-scans",
						Destination: &est.linear,
					},
					&cli.StringFlag{
						Name:        "report",
						Usage:       "Write an HTML report to this file",
						Destination: &est.reportPath,
					},
					&cli.BoolFlag{
						Name:        "apply",
						Usage:       "Store the estimated coefficients in the settings file",
						Destination: &est.apply,
					},
				}...),
			},
			{
				Name:    "process",
				Aliases: []string{"p"},
				Usage:   "Process one frame of a raw file into A-scans",
				Action: func(cCtx *cli.Context) error {
					return runProcess(&opts, &proc)
				},
				Flags: append(geometryFlags(&opts), []cli.Flag{
					&cli.StringFlag{
						Name:        "out",
						Aliases:     []string{"o"},
						Usage:       "Output CSV file (default stdout)",
						Destination: &proc.outPath,
					},
					&cli.IntFlag{
						Name:        "frame",
						Usage:       "Frame number in the file",
						Destination: &proc.frameNr,
					},
					&cli.Float64Flag{
						Name:        "d2",
						Usage:       "Override dispersion coefficient d2",
						Destination: &proc.d2,
					},
					&cli.Float64Flag{
						Name:        "d3",
						Usage:       "Override dispersion coefficient d3",
						Destination: &proc.d3,
					},
				}...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func geometryFlags(opts *globalOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Raw little-endian acquisition file",
			Destination: &opts.rawPath,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "bit-depth",
			Usage:       "Override bits per sample",
			Destination: &opts.bitDepth,
		},
		&cli.IntFlag{
			Name:        "width",
			Usage:       "Override samples per spectrum",
			Destination: &opts.width,
		},
		&cli.IntFlag{
			Name:        "height",
			Usage:       "Override spectra per frame",
			Destination: &opts.height,
		},
		&cli.IntFlag{
			Name:        "frames-per-buffer",
			Usage:       "Frames per acquisition buffer",
			Value:       1,
			Destination: &opts.framesPerBuffer,
		},
	}
}
