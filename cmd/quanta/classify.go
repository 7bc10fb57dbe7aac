package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/quantaml/quanta/internal/classify"
	"github.com/quantaml/quanta/internal/logger"
	"github.com/quantaml/quanta/internal/runner"
	"github.com/quantaml/quanta/internal/tensor"
)

func classifyCmd() *cli.Command {
	var (
		imagePath string
		topK      int64
		asJSON    bool
	)

	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify an image with an .onnx model",
		ArgsUsage: "[image]",
		Flags: append(append(commonModelFlags(), runtimeFlags()...),
			&cli.StringFlag{
				Name:        "image",
				Aliases:     []string{"i"},
				Usage:       "path to the image to classify",
				Destination: &imagePath,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Aliases:     []string{"k"},
				Usage:       "number of predictions to report",
				Value:       int64(classify.DefaultK),
				Destination: &topK,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit predictions as JSON",
				Destination: &asJSON,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyCommonConfig(cmd, LoadConfig(log))

			if imagePath == "" {
				imagePath = cmd.Args().First()
			}
			if modelPath == "" || imagePath == "" {
				return cli.Exit("error: --model and an image path are required", 1)
			}

			if err := runner.InitRuntime(ortLibrary); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = runner.ShutdownRuntime() }()

			session, err := runner.NewSession(modelPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = session.Close() }()

			preds, err := classifyImage(ctx, session, imagePath, int(topK))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Debug("classification done", "image", imagePath, "model", modelPath)

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(preds)
			}
			printPredictions(preds)
			return nil
		},
	}
}

// classifyImage preprocesses one image, feeds it to the session's first
// graph input and ranks the first output.
func classifyImage(ctx context.Context, session *runner.Session, imagePath string, k int) ([]classify.Prediction, error) {
	pre, err := buildPreprocessor()
	if err != nil {
		return nil, err
	}
	set, err := loadLabels(ctx)
	if err != nil {
		return nil, err
	}

	input, err := pre.FromFile(imagePath)
	if err != nil {
		return nil, err
	}

	names := session.InputNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("model has no graph inputs")
	}
	outputs, err := session.Run(ctx, map[string]*tensor.Dense{names[0]: input})
	if err != nil {
		return nil, err
	}

	outNames := session.OutputNames()
	if len(outNames) == 0 {
		return nil, fmt.Errorf("model has no graph outputs")
	}
	scores := outputs[outNames[0]]
	if scores == nil {
		return nil, fmt.Errorf("model produced no output tensor")
	}
	return classify.TopK(scores.Data, set, k), nil
}

func printPredictions(preds []classify.Prediction) {
	for i, p := range preds {
		fmt.Printf("%2d. %-32s %6.2f%%\n", i+1, p.Label, p.Probability*100)
	}
}
