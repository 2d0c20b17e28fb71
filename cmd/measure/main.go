package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/measure"
	"github.com/nvr-ai/go-track/report"
	"github.com/nvr-ai/go-track/store"
)

func main() {
	var (
		dbPath   string
		runID    string
		list     bool
		remove   bool
		minSpan  int
		plotPath string
		verbose  bool
	)
	flag.StringVar(&dbPath, "db", "runs.db", "SQLite run database")
	flag.StringVar(&runID, "run", "", "Run ID or unique prefix (default: newest run)")
	flag.BoolVar(&list, "list", false, "List stored runs")
	flag.BoolVar(&remove, "delete", false, "Delete the selected run")
	flag.IntVar(&minSpan, "min-span", measure.DefaultMinSpan, "Smallest selection width and height in pixels")
	flag.StringVar(&plotPath, "plot", "", "Write the occupancy heatmap titled with the last measurement")
	flag.BoolVar(&verbose, "v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: measure [-db runs.db] [-run id] x1,y1,x2,y2 ...")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))

	runs, err := store.Open(dbPath, logger)
	if err != nil {
		logger.Error("open run database", "err", err)
		os.Exit(1)
	}
	defer runs.Close()

	ctx := context.Background()
	switch {
	case list:
		err = listRuns(ctx, runs)
	case remove:
		err = deleteRun(ctx, runs, runID, logger)
	default:
		err = measureRun(ctx, runs, runID, flag.Args(), minSpan, plotPath, logger)
	}
	if err != nil {
		logger.Error("measure failed", "err", err)
		runs.Close()
		os.Exit(1)
	}
}

func listRuns(ctx context.Context, runs *store.Store) error {
	infos, err := runs.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range infos {
		fmt.Printf("%s  %s  %5d frames  %5d detections  %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Frames, r.Detections, r.Source)
	}
	return nil
}

// resolve picks the named run or the newest one.
func resolve(ctx context.Context, runs *store.Store, text string) (*store.Run, error) {
	if text == "" {
		infos, err := runs.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 {
			return nil, errors.Wrap(store.ErrRunNotFound, "database has no runs")
		}
		return runs.LoadRun(ctx, infos[0].ID)
	}
	id, err := runs.ResolveID(ctx, text)
	if err != nil {
		return nil, err
	}
	return runs.LoadRun(ctx, id)
}

func deleteRun(ctx context.Context, runs *store.Store, text string, logger *slog.Logger) error {
	if text == "" {
		return errors.New("measure: -delete needs -run")
	}
	id, err := runs.ResolveID(ctx, text)
	if err != nil {
		return err
	}
	if err := runs.DeleteRun(ctx, id); err != nil {
		return err
	}
	logger.Info("run deleted", "id", id)
	return nil
}

func measureRun(ctx context.Context, runs *store.Store, text string, selections []string, minSpan int, plotPath string, logger *slog.Logger) error {
	if len(selections) == 0 {
		flag.Usage()
		return errors.New("measure: no rectangle given")
	}
	run, err := resolve(ctx, runs, text)
	if err != nil {
		return err
	}
	maps, err := run.Maps()
	if err != nil {
		return err
	}
	session, err := measure.NewSession(maps, run.FrameRate, run.CmPerPixel, logger)
	if err != nil {
		return err
	}
	session.SetMinSpan(minSpan)
	logger.Info("run loaded", "id", run.ID, "source", run.Source, "frames", len(run.Trajectory),
		"width", run.Width, "height", run.Height)

	var last measure.Measurement
	for _, sel := range selections {
		start, end, err := measure.ParseSelection(sel)
		if err != nil {
			return err
		}
		m, err := session.Select(start, end)
		if errors.Is(err, measure.ErrSelectionTooSmall) {
			logger.Warn("selection ignored", "rect", sel, "err", err)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Println(m.Caption())
		fmt.Println()
		last = m
	}

	if plotPath == "" || len(session.Measurements()) == 0 {
		return nil
	}
	cfg := report.DefaultPlotConfig()
	cfg.Title = last.Caption()
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(plotPath)), "."); ext != "" {
		cfg.Format = ext
	}
	f, err := os.Create(filepath.Clean(plotPath))
	if err != nil {
		return errors.Wrap(err, "measure: create plot")
	}
	if err := report.WriteHeatmap(f, maps, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
