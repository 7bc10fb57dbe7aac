package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/quantaml/quanta/internal/logger"
)

var (
	modelPath  string
	labelsPath string
	ortLibrary string
	inputSize  int64
	logLevel   string
	logFormat  string
	debug      bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to .onnx model file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "labels",
			Aliases:     []string{"l"},
			Usage:       "path to newline-delimited class labels",
			Destination: &labelsPath,
		},
		&cli.Int64Flag{
			Name:        "input-size",
			Aliases:     []string{"size"},
			Usage:       "square edge the input image is resized to",
			Value:       224,
			Destination: &inputSize,
		},
	}
}

func runtimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "ort-library",
			Usage:       "path to the onnxruntime shared library (or QUANTA_ORT_LIBRARY)",
			Destination: &ortLibrary,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func buildLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}
