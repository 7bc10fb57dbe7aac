package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/quantaml/quanta/internal/logger"
	"github.com/quantaml/quanta/pkg/mqf"
)

func convertCmd() *cli.Command {
	var level string

	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert .onnx models to mobile-ready .mqf containers",
		ArgsUsage: "<model.onnx | directory>",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "level",
				Usage:       "optimization level (basic, all)",
				Value:       string(mqf.OptimizeBasic),
				Destination: &level,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyCommonConfig(cmd, LoadConfig(log))

			lvl, err := mqf.ParseLevel(level)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			target := cmd.Args().First()
			if target == "" {
				target = modelPath
			}
			if target == "" {
				return cli.Exit("error: a model file or directory is required", 1)
			}

			set, err := loadLabels(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			stat, err := os.Stat(target)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat %q: %v", target, err), 1)
			}

			if stat.IsDir() {
				written, err := mqf.ConvertDir(target, lvl, set.Names(), log)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				for _, path := range written {
					fmt.Println(path)
				}
				return nil
			}

			if !strings.EqualFold(filepath.Ext(target), ".onnx") {
				return cli.Exit("error: quanta convert only supports .onnx files", 1)
			}
			out := mqf.SiblingPath(target)
			if err := mqf.Convert(target, out, lvl, set.Names()); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("converted model", "source", target, "output", out, "level", level)
			fmt.Println(out)
			return nil
		},
	}
}
