package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/fusion"
	"github.com/pscheid92/emofusion/internal/platform/config"
)

const maxLineBytes = 1 << 20

type replayOptions struct {
	file       string
	capacity   int
	windowSize int
	windows    string
	threshold  float64
	weights    domain.WeightConfig
}

// replayLine is one output record, keyed to the sample that produced it.
type replayLine struct {
	Line        int                  `json:"line"`
	At          time.Time            `json:"at"`
	Result      *domain.FusionResult `json:"result"`
	Trend       []domain.TrendPoint  `json:"trend"`
	Significant []domain.Deviation   `json:"significant,omitempty"`
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	defaults := domain.DefaultWeights()
	opts := replayOptions{}

	cmd := &cobra.Command{
		Use:   "fusion-replay",
		Short: "Replay recorded modality samples through the fusion engine",
		Long: "Reads JSON lines of {at, face, voice, text} samples and prints the fused result,\n" +
			"trend and significant deviations after each one.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := stdin
			if opts.file != "-" {
				f, err := os.Open(opts.file)
				if err != nil {
					return fmt.Errorf("open samples: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			return replay(in, stdout, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "-", "JSON lines file of modality samples (- for stdin)")
	flags.IntVar(&opts.capacity, "capacity", fusion.DefaultWindowCapacity, "number of samples the window retains")
	flags.IntVar(&opts.windowSize, "window-size", 5, "samples fused per result")
	flags.StringVar(&opts.windows, "windows", "5,10,30", "comma-separated trend window sizes")
	flags.Float64Var(&opts.threshold, "threshold", fusion.DefaultDeviationThreshold, "minimum |deviation| reported as significant")
	flags.Float64Var(&opts.weights.Face, "face", defaults.Face, "face modality weight")
	flags.Float64Var(&opts.weights.Voice, "voice", defaults.Voice, "voice modality weight")
	flags.Float64Var(&opts.weights.Text, "text", defaults.Text, "text modality weight")

	return cmd
}

func replay(in io.Reader, out io.Writer, opts replayOptions) error {
	sizes, err := config.ParseWindows(opts.windows)
	if err != nil {
		return fmt.Errorf("--windows: %w", err)
	}
	if err := opts.weights.Validate(); err != nil {
		return err
	}
	weights := opts.weights
	if opts.capacity < 1 {
		return errors.New("--capacity must be at least 1")
	}

	window := fusion.NewWindow(opts.capacity)
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var sample domain.ModalitySample
		if err := json.Unmarshal(scanner.Bytes(), &sample); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := validateSample(sample); err != nil {
			slog.Warn("Skipping sample", "line", lineNo, "error", err)
			continue
		}

		window.Append(sample)
		rec := replayLine{Line: lineNo, At: sample.At, Trend: fusion.Analyze(window, sizes, weights)}
		if result, ok := fusion.Compute(window, opts.windowSize, weights); ok {
			rec.Result = &result
			rec.Significant = fusion.Significant(result.Deviations, opts.threshold)
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read samples: %w", err)
	}
	return nil
}

func validateSample(s domain.ModalitySample) error {
	for _, m := range domain.Modalities {
		if err := domain.ValidateVector(s.Of(m)); err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
	}
	return nil
}
