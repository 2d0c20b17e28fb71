package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/config"
	"github.com/nvr-ai/go-track/controller"
	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/profiler"
	"github.com/nvr-ai/go-track/store"
	"github.com/nvr-ai/go-track/util"
	"github.com/nvr-ai/go-track/video"
)

// flags holds the command line values that override the configuration file.
type flags struct {
	configPath string
	videoPath  string
	framesDir  string
	progress   time.Duration

	start       string
	end         string
	subsample   int
	downRatio   int
	animal      string
	frameRate   float64
	workers     int
	gapPolicy   string
	cmPerPixel  float64
	borderCrop  bool
	fallback    bool
	outputVideo string
	heatmap     string
	pathPlot    string
	csv         string
	database    string
	regionMask  string
	logLevel    string
}

func parseFlags() *flags {
	f := &flags{}
	def := config.Default()
	flag.StringVar(&f.configPath, "config", "", "YAML configuration file")
	flag.StringVar(&f.videoPath, "video", "", "Input video file (.mp4, .avi, .mov)")
	flag.StringVar(&f.framesDir, "frames", "", "Input directory of numbered frame images")
	flag.DurationVar(&f.progress, "progress", 0, "Log a progress report at this interval (0 disables)")

	flag.StringVar(&f.start, "start", def.Video.Start, "Start time code mm:ss")
	flag.StringVar(&f.end, "end", def.Video.End, "End time code mm:ss")
	flag.IntVar(&f.subsample, "subsample", def.Video.Subsample, "Keep every Nth frame")
	flag.IntVar(&f.downRatio, "down-ratio", def.Video.DownRatio, "Integer downsampling ratio")
	flag.StringVar(&f.animal, "animal", def.Video.AnimalColor.String(), "Animal color: white or black")
	flag.Float64Var(&f.frameRate, "fps", 0, "Frame rate override, required for -frames")
	flag.IntVar(&f.workers, "workers", def.Track.Workers, "Concurrent frame detections")
	flag.StringVar(&f.gapPolicy, "gap-policy", def.Track.GapPolicy.String(), "Distance across missed frames: break or bridge")
	flag.Float64Var(&f.cmPerPixel, "cm-per-pixel", def.Track.CmPerPixel, "Length calibration")
	flag.BoolVar(&f.borderCrop, "border-crop", false, "Use a border crop instead of floor segmentation")
	flag.BoolVar(&f.fallback, "fallback", def.Region.FallbackToBorderCrop, "Fall back to a border crop when no floor is found")
	flag.StringVar(&f.outputVideo, "output", def.Output.Video, "Annotated output video")
	flag.StringVar(&f.heatmap, "heatmap", "", "Occupancy heatmap image")
	flag.StringVar(&f.pathPlot, "path", "", "Trajectory plot image")
	flag.StringVar(&f.csv, "csv", "", "Trajectory CSV file")
	flag.StringVar(&f.database, "db", "", "SQLite run database")
	flag.StringVar(&f.regionMask, "region", "", "Valid region mask PNG")
	flag.StringVar(&f.logLevel, "log-level", def.Log.Level, "Log level: debug, info, warn or error")
	flag.Parse()
	return f
}

// apply copies the explicitly set flags over the configuration.
func (f *flags) apply(cfg *config.Config) error {
	var err error
	flag.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "start":
			cfg.Video.Start = f.start
		case "end":
			cfg.Video.End = f.end
		case "subsample":
			cfg.Video.Subsample = f.subsample
		case "down-ratio":
			cfg.Video.DownRatio = f.downRatio
		case "animal":
			err = cfg.Video.AnimalColor.UnmarshalText([]byte(f.animal))
		case "fps":
			cfg.Video.FrameRate = f.frameRate
		case "workers":
			cfg.Track.Workers = f.workers
			cfg.Video.Workers = f.workers
		case "gap-policy":
			err = cfg.Track.GapPolicy.UnmarshalText([]byte(f.gapPolicy))
		case "cm-per-pixel":
			cfg.Track.CmPerPixel = f.cmPerPixel
		case "border-crop":
			if f.borderCrop {
				cfg.Region.Mode = detector.RegionBorderCrop
			}
		case "fallback":
			cfg.Region.FallbackToBorderCrop = f.fallback
		case "output":
			cfg.Output.Video = f.outputVideo
		case "heatmap":
			cfg.Output.Heatmap = f.heatmap
		case "path":
			cfg.Output.Path = f.pathPlot
		case "csv":
			cfg.Output.CSV = f.csv
		case "db":
			cfg.Output.Database = f.database
		case "region":
			cfg.Output.Region = f.regionMask
		case "log-level":
			cfg.Log.Level = f.logLevel
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func main() {
	f := parseFlags()
	if (f.videoPath == "") == (f.framesDir == "") {
		fmt.Fprintln(os.Stderr, "Usage: trackbox (-video file | -frames dir -fps N) [-config track.yaml] [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trackbox: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := f.apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "trackbox: %v\n", err)
		os.Exit(2)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, cfg, logger); err != nil {
		logger.Error("tracking failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags, cfg *config.Config, logger *slog.Logger) error {
	prof := profiler.New(profiler.Options{ReportInterval: f.progress}, logger)
	prof.Start(ctx)
	defer prof.Stop()

	source := f.videoPath
	done := prof.StartStage(profiler.StageDecode)
	clip, err := load(ctx, f, cfg)
	done()
	if err != nil {
		return err
	}
	if f.framesDir != "" {
		source = filepath.Clean(f.framesDir)
	}
	logger.Info("clip ready",
		"source", source,
		"frames", clip.Len(),
		"fps", clip.FrameRate,
		"width", clip.Width,
		"height", clip.Height)

	ctrl, err := controller.New(cfg, logger)
	if err != nil {
		return err
	}
	ctrl.Profiler = prof

	if cfg.Output.Video != "" {
		sink, err := video.NewSink(cfg.Output.Video, cfg.Output.Codec, clip.FrameRate, clip.Width, clip.Height)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Error("close output video", "err", err)
			}
		}()
		ctrl.Sink = sink
	}

	if cfg.Output.Database != "" {
		runs, err := store.Open(cfg.Output.Database, logger)
		if err != nil {
			return err
		}
		defer runs.Close()
		ctrl.Store = runs
	}

	res, err := ctrl.Run(ctx, clip, source)
	if err != nil {
		return err
	}
	prof.Report("run complete")

	s := res.Summary
	fmt.Printf("frames: %d  detections: %d  gaps: %d (%.1f%%)\n", s.Frames, s.Detections, s.Gaps, 100*s.GapFraction)
	fmt.Printf("distance: %.2f cm  duration: %.1f s  mean speed: %.2f cm/s\n", s.DistanceCm, s.DurationSeconds, s.MeanSpeedCmS)
	if res.RunID != uuid.Nil {
		fmt.Printf("run: %s\n", res.RunID)
	}
	return nil
}

// load decodes the input video or frame directory into a prepared clip.
func load(ctx context.Context, f *flags, cfg *config.Config) (*video.Clip, error) {
	if f.videoPath != "" {
		return video.Read(ctx, f.videoPath, cfg.Video)
	}
	frames, err := util.LoadDirectoryImages(f.framesDir)
	if err != nil {
		return nil, errors.Wrapf(err, "trackbox: load %s", f.framesDir)
	}
	if len(frames) == 0 {
		return nil, errors.Wrapf(video.ErrEmptyClip, "%s has no frame images", f.framesDir)
	}
	return video.Prepare(ctx, frames, video.SourceInfo{}, cfg.Video)
}
