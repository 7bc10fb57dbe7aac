package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/quantaml/quanta/internal/calibration"
	"github.com/quantaml/quanta/internal/logger"
	"github.com/quantaml/quanta/internal/onnx"
	"github.com/quantaml/quanta/internal/runner"
	"github.com/quantaml/quanta/pkg/mqf"
	"github.com/quantaml/quanta/pkg/quant"
)

func quantizeCmd() *cli.Command {
	var (
		calibrationDir string
		outputPath     string
		level          string
		evalImage      string
		simulatedOut   string
		topK           int64
	)

	return &cli.Command{
		Name:  "quantize",
		Usage: "Statically quantize an .onnx model using a calibration image folder",
		Flags: append(append(commonModelFlags(), runtimeFlags()...),
			&cli.StringFlag{
				Name:        "calibration",
				Aliases:     []string{"c"},
				Usage:       "folder of representative images",
				Destination: &calibrationDir,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output .mqf path (default: model path with .mqf extension)",
				Destination: &outputPath,
			},
			&cli.StringFlag{
				Name:        "level",
				Usage:       "optimization level (basic, all)",
				Value:       string(mqf.OptimizeBasic),
				Destination: &level,
			},
			&cli.StringFlag{
				Name:        "eval-image",
				Usage:       "classify this image before and after quantization",
				Destination: &evalImage,
			},
			&cli.StringFlag{
				Name:        "simulated-out",
				Usage:       "also write an .onnx copy with quantize-dequantize weights",
				Destination: &simulatedOut,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Aliases:     []string{"k"},
				Usage:       "predictions shown in before/after comparison",
				Value:       5,
				Destination: &topK,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyCommonConfig(cmd, LoadConfig(log))

			if modelPath == "" || calibrationDir == "" {
				return cli.Exit("error: --model and --calibration are required", 1)
			}
			lvl, err := mqf.ParseLevel(level)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if outputPath == "" {
				outputPath = mqf.SiblingPath(modelPath)
			}

			model, err := onnx.ParseFile(modelPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: parse model: %v", err), 1)
			}
			pre, err := buildPreprocessor()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			set, err := loadLabels(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			inputKey := calibration.DefaultInputKey
			if names := model.InputNames(); len(names) > 0 {
				inputKey = names[0]
			}
			feed := calibration.New(calibrationDir, pre,
				calibration.WithInputKey(inputKey), calibration.WithLogger(log))

			// Activation observation needs a live runtime; calibration
			// degrades to input ranges without one.
			var session *runner.Session
			if err := runner.InitRuntime(ortLibrary); err != nil {
				log.Warn("onnxruntime unavailable, observing graph inputs only", "error", err)
			} else {
				defer func() { _ = runner.ShutdownRuntime() }()
				session, err = runner.NewSession(modelPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				defer func() { _ = session.Close() }()
			}

			var before []string
			if evalImage != "" && session != nil {
				before, err = evalTopK(ctx, session, evalImage, int(topK))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: evaluate original: %v", err), 1)
				}
			}

			cfg := quant.Config{
				Model:      model,
				Feed:       feed,
				OutputPath: outputPath,
				ModelName:  strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
				Labels:     set.Names(),
				Level:      lvl,
				Logger:     log,
			}
			if session != nil {
				cfg.Runner = session
			}
			report, err := quant.Static(ctx, cfg)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: quantize: %v", err), 1)
			}

			fmt.Printf("quantized %s -> %s\n", modelPath, report.OutputPath)
			fmt.Printf("calibration batches: %d\n", report.BatchesConsumed)
			fmt.Printf("weight tensors:      %d\n", report.WeightTensors)
			fmt.Printf("activation ranges:   %d\n", len(report.ActivationRanges))

			if simulatedOut != "" || (evalImage != "" && session != nil) {
				simPath := simulatedOut
				if simPath == "" {
					simPath = filepath.Join(os.TempDir(), "quanta-simulated.onnx")
					defer func() { _ = os.Remove(simPath) }()
				}
				if err := writeSimulated(model, simPath); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				if simulatedOut != "" {
					fmt.Printf("simulated model:     %s\n", simPath)
				}

				if evalImage != "" && session != nil {
					simSession, err := runner.NewSession(simPath)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: load simulated model: %v", err), 1)
					}
					defer func() { _ = simSession.Close() }()
					after, err := evalTopK(ctx, simSession, evalImage, int(topK))
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: evaluate quantized: %v", err), 1)
					}
					printComparison(before, after)
				}
			}
			return nil
		},
	}
}

// writeSimulated splices quantize-dequantize weights into a copy of the
// model so a float32 runtime reproduces int8 precision.
func writeSimulated(model *onnx.Model, path string) error {
	replacements, err := quant.SimulatedWeights(model)
	if err != nil {
		return err
	}
	return onnx.SpliceFloat32(model, replacements, path)
}

func evalTopK(ctx context.Context, session *runner.Session, imagePath string, k int) ([]string, error) {
	preds, err := classifyImage(ctx, session, imagePath, k)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(preds))
	for i, p := range preds {
		lines[i] = fmt.Sprintf("%-32s %6.2f%%", p.Label, p.Probability*100)
	}
	return lines, nil
}

func printComparison(before, after []string) {
	fmt.Println("\nbefore quantization:")
	for _, line := range before {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println("after quantization:")
	for _, line := range after {
		fmt.Printf("  %s\n", line)
	}
}
