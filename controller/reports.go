package controller

import (
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/config"
	"github.com/nvr-ai/go-track/report"
)

// WriteReports writes the heatmap, path plot, CSV and region mask files named
// in out. Empty paths are skipped.
func WriteReports(out config.OutputConfig, res *Result, height, width int) error {
	if out.Heatmap != "" {
		cfg := plotConfig(out.Heatmap, "Occupancy time (frames)")
		if err := writeFile(out.Heatmap, func(w io.Writer) error {
			return report.WriteHeatmap(w, res.Maps, cfg)
		}); err != nil {
			return err
		}
	}
	if out.Path != "" {
		cfg := plotConfig(out.Path, "Trajectory")
		if err := writeFile(out.Path, func(w io.Writer) error {
			return report.WritePath(w, res.Trajectory, height, width, cfg)
		}); err != nil {
			return err
		}
	}
	if out.CSV != "" {
		if err := writeFile(out.CSV, func(w io.Writer) error {
			return report.WriteCSV(w, res.Trajectory)
		}); err != nil {
			return err
		}
	}
	if out.Region != "" && res.Region != nil {
		if err := writeFile(out.Region, func(w io.Writer) error {
			return png.Encode(w, res.Region.Mask.ToGray())
		}); err != nil {
			return err
		}
	}
	return nil
}

// plotConfig takes the image format from the file extension.
func plotConfig(path, title string) report.PlotConfig {
	cfg := report.DefaultPlotConfig()
	cfg.Title = title
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		cfg.Format = ext
	}
	return cfg
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return errors.Wrap(err, "controller: create report")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "controller: close %s", path)
		}
	}()
	if err := write(f); err != nil {
		return errors.Wrapf(err, "controller: write %s", path)
	}
	return nil
}
