package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/quantaml/quanta/internal/api"
	"github.com/quantaml/quanta/internal/logger"
	"github.com/quantaml/quanta/internal/runner"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		poolSize    int64
		topK        int64
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve image classification over HTTP",
		Flags: append(append(commonModelFlags(), runtimeFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.Int64Flag{
				Name:        "pool-size",
				Usage:       "number of concurrent inference sessions",
				Value:       int64(runner.DefaultPoolSize),
				Destination: &poolSize,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Aliases:     []string{"k"},
				Usage:       "predictions per response",
				Value:       5,
				Destination: &topK,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, LoadConfig(log), &addr, &poolSize)

			if modelPath == "" {
				return cli.Exit("error: --model is required", 1)
			}
			if err := runner.InitRuntime(ortLibrary); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = runner.ShutdownRuntime() }()

			pool, err := runner.NewPool(modelPath, int(poolSize))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer pool.Close()

			pre, err := buildPreprocessor()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			set, err := loadLabels(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			server := api.NewServer(api.Config{
				Engine:    pool,
				Pre:       pre,
				Labels:    set,
				ModelName: strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
				TopK:      int(topK),
				Logger:    log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "pool_size", poolSize)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
