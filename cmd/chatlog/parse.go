package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/chatlog/internal/config"
	"github.com/MikeSquared-Agency/chatlog/internal/logparse"
	"github.com/MikeSquared-Agency/chatlog/internal/processor"
	"github.com/MikeSquared-Agency/chatlog/internal/render"
	"github.com/MikeSquared-Agency/chatlog/internal/source"
)

type parseOptions struct {
	logfile   string
	url       string
	db        string
	table     string
	outfile   string
	plottable bool
	noErrors  bool
	quote     bool
	timegroup string
	format    string
	year      int
	profile   string
	timezone  string
}

func newParseCmd(env config.Config) *cobra.Command {
	opts := parseOptions{
		table:    env.LogTable,
		profile:  env.ProfilePath,
		timezone: env.Timezone,
	}

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse one transcript log and write the report",
		Long: `Reads a transcript log from a file, a URL or a database table, groups it
into per-user question/answer exchanges and writes a report.

The log's timestamps carry no year; --year supplies it (default: current year).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.Context(), opts, cmd.OutOrStdout(), slog.Default())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.logfile, "logfile", "l", "", "path of the log file to parse")
	f.StringVar(&opts.url, "url", "", "fetch the log over HTTP(S) instead of reading a file")
	f.StringVar(&opts.db, "db", "", "read the log from Postgres at this URL instead of a file")
	f.StringVar(&opts.table, "table", opts.table, "table holding log lines when --db is set")
	f.StringVarP(&opts.outfile, "outfile", "o", "", "write the report here instead of stdout")
	f.BoolVarP(&opts.plottable, "plottable", "p", false, "emit the comma-separated table (same as --format csv)")
	f.BoolVarP(&opts.noErrors, "noerrors", "n", false, "drop exchanges answered with the fallback response")
	f.BoolVar(&opts.quote, "quote", false, "quote table fields holding commas, quotes or line breaks")
	f.StringVarP(&opts.timegroup, "timegroup", "t", "", "bucket width for the summary: hour, day, week, month")
	f.StringVar(&opts.format, "format", "", "output format: text, csv, json, summary")
	f.IntVar(&opts.year, "year", 0, "year for the log's timestamps (default: current year)")
	f.StringVar(&opts.profile, "profile", opts.profile, "YAML parser profile")
	f.StringVar(&opts.timezone, "timezone", opts.timezone, "IANA zone the timestamps are in (default: local)")
	return cmd
}

// resolveFormat folds --plottable and --timegroup into a single format.
// --timegroup alone selects the summary.
func (o parseOptions) resolveFormat() (render.Format, error) {
	if o.plottable {
		if o.format != "" && o.format != string(render.FormatCSV) {
			return "", fmt.Errorf("--plottable conflicts with --format %s", o.format)
		}
		return render.FormatCSV, nil
	}
	if o.format == "" {
		if o.timegroup != "" {
			return render.FormatSummary, nil
		}
		return render.FormatText, nil
	}
	return render.ParseFormat(o.format)
}

func (o parseOptions) openSource(ctx context.Context) (source.Source, func(), error) {
	set := 0
	for _, s := range []string{o.logfile, o.url, o.db} {
		if s != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return nil, nil, usageError{errors.New("one of --logfile, --url or --db is required")}
	case set > 1:
		return nil, nil, usageError{errors.New("--logfile, --url and --db are mutually exclusive")}
	}

	switch {
	case o.url != "":
		return source.NewHTTP(o.url), func() {}, nil
	case o.db != "":
		pg, err := source.NewPostgres(ctx, o.db, o.table)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return source.File{Path: o.logfile}, func() {}, nil
	}
}

func runParse(ctx context.Context, opts parseOptions, stdout io.Writer, logger *slog.Logger) error {
	format, err := opts.resolveFormat()
	if err != nil {
		return usageError{err}
	}
	var group logparse.TimeGroup
	if opts.timegroup != "" {
		if group, err = logparse.ParseTimeGroup(opts.timegroup); err != nil {
			return usageError{err}
		}
	}
	if opts.year < 0 {
		return usageError{fmt.Errorf("invalid --year %d", opts.year)}
	}

	cfg, err := config.LoadProfile(opts.profile)
	if err != nil {
		return err
	}
	loc, err := config.Location(opts.timezone)
	if err != nil {
		return usageError{err}
	}

	src, closeSrc, err := opts.openSource(ctx)
	if err != nil {
		return err
	}
	defer closeSrc()

	proc := processor.New(cfg, logger, processor.WithLocation(loc))
	start := time.Now()
	res, err := proc.Run(ctx, processor.Request{
		Source:   src,
		Year:     opts.year,
		NoErrors: opts.noErrors,
	})
	if err != nil {
		return err
	}

	out, err := render.Render(res.Report, render.Options{
		Format:    format,
		Config:    cfg,
		Table:     render.TableOptions{Quote: opts.quote},
		TimeGroup: group,
	})
	if err != nil {
		return err
	}

	if opts.outfile == "" {
		if _, err := io.WriteString(stdout, out); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		if format != render.FormatCSV && len(out) > 0 && out[len(out)-1] != '\n' {
			if _, err := io.WriteString(stdout, "\n"); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}
	} else if err := os.WriteFile(opts.outfile, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Debug("parse complete",
		"source", res.SourceRef,
		"format", format,
		"outfile", opts.outfile,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
