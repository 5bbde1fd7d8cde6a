package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/output"
)

// Options configures one dashboard session.
type Options struct {
	Age    int64
	Income int64

	Explore  bool
	Ranges   ExploreOptions
	CSVPath  string
	JSONPath string
}

// DefaultOptions predicts for a 35 year old earning 50000 and explores the
// default ranges.
func DefaultOptions() Options {
	return Options{
		Age:     35,
		Income:  50000,
		Explore: true,
		Ranges:  DefaultExploreOptions(),
	}
}

// ErrServiceUnreachable aborts the session when /health cannot be read.
var ErrServiceUnreachable = errors.New("cannot connect to the prediction service")

// Run checks the service, prints model info and a single prediction, and
// optionally explores the range grid. Everything human-readable goes to w.
func Run(ctx context.Context, c *Client, opts Options, w io.Writer) error {
	if err := validate.Var(opts.Age, "gte=18,lte=100"); err != nil {
		return fmt.Errorf("invalid input: age %d must be between 18 and 100", opts.Age)
	}
	if err := validate.Var(opts.Income, "gte=0,lte=500000"); err != nil {
		return fmt.Errorf("invalid input: income %d must be between 0 and 500000", opts.Income)
	}

	health, err := c.Health(ctx)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrServiceUnreachable, c.BaseURL, err)
	}
	fmt.Fprintf(w, "API status: %s (model loaded: %t)\n", health.Status, health.ModelLoaded)

	info, err := c.ModelInfo(ctx)
	if err != nil {
		fmt.Fprintln(w, "Model: not available")
		output.Logger.Warn("Model info unavailable", "error", err)
	} else {
		fmt.Fprintf(w, "Model: %s %s (run %s, experiment %s, features %v)\n",
			info.ModelType, info.ModelName, info.RunID, info.ExperimentName, info.Features)
	}

	if err := single(ctx, c, opts, w); err != nil {
		fmt.Fprintf(w, "Prediction error: %v\n", err)
	}

	if !opts.Explore {
		return nil
	}
	points, err := Explore(ctx, c, opts.Ranges)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nExplored %d combinations\n", len(points))
	if err := HeatMap(w, points); err != nil {
		return err
	}
	return writePoints(points, opts.CSVPath, opts.JSONPath)
}

func single(ctx context.Context, c *Client, opts Options, w io.Writer) error {
	resp, err := c.Predict(ctx, opts.Age, opts.Income)
	if err != nil {
		return err
	}
	if resp.Prediction == model.LabelYes {
		fmt.Fprintf(w, "Likely to subscribe (confidence %.1f%%)\n", resp.PredictionProba[model.LabelYes]*100)
	} else {
		fmt.Fprintf(w, "Not likely to subscribe (confidence %.1f%%)\n", resp.PredictionProba[model.LabelNo]*100)
	}
	for _, label := range []string{model.LabelNo, model.LabelYes} {
		fmt.Fprintf(w, "  %-4s %5.1f%%\n", label, resp.PredictionProba[label]*100)
	}
	return nil
}

func writePoints(points []model.GridPoint, csvPath, jsonPath string) error {
	if csvPath != "" {
		cw, err := output.NewCSVWriter(csvPath)
		if err != nil {
			return fmt.Errorf("failed to init CSV writer at %s: %w", csvPath, err)
		}
		defer cw.Close()
		for _, p := range points {
			if err := cw.Write(p); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}
		}
		output.Logger.Info("Wrote exploration", "path", csvPath, "points", len(points))
	}
	if jsonPath != "" {
		jw, err := output.NewJSONWriter(jsonPath)
		if err != nil {
			return fmt.Errorf("failed to init JSON writer at %s: %w", jsonPath, err)
		}
		defer jw.Close()
		for _, p := range points {
			if err := jw.Write(p); err != nil {
				return fmt.Errorf("failed to write JSON: %w", err)
			}
		}
		output.Logger.Info("Wrote exploration", "path", jsonPath, "points", len(points))
	}
	return nil
}
