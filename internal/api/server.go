// Package api exposes image classification over HTTP.
package api

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/quantaml/quanta/internal/classify"
	"github.com/quantaml/quanta/internal/labels"
	"github.com/quantaml/quanta/internal/logger"
	"github.com/quantaml/quanta/internal/preprocess"
	"github.com/quantaml/quanta/internal/tensor"
)

// Engine evaluates one batch of named inputs. *runner.Pool satisfies this.
type Engine interface {
	Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error)
}

// Config wires a Server.
type Config struct {
	Engine    Engine
	Pre       *preprocess.Preprocessor
	Labels    *labels.Set
	ModelName string

	// InputKey names the graph input batches are fed to. Defaults to
	// "input".
	InputKey string

	// TopK bounds how many predictions a response carries. Defaults to
	// classify.DefaultK.
	TopK int

	Logger logger.Logger
}

type Server struct {
	engine    Engine
	pre       *preprocess.Preprocessor
	labels    *labels.Set
	modelName string
	inputKey  string
	topK      int
	log       logger.Logger
	clock     func() time.Time
}

func NewServer(cfg Config) *Server {
	s := &Server{
		engine:    cfg.Engine,
		pre:       cfg.Pre,
		labels:    cfg.Labels,
		modelName: cfg.ModelName,
		inputKey:  cfg.InputKey,
		topK:      cfg.TopK,
		log:       cfg.Logger,
		clock:     time.Now,
	}
	if s.inputKey == "" {
		s.inputKey = "input"
	}
	if s.topK <= 0 {
		s.topK = classify.DefaultK
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/classify", s.handleClassify)
	e.GET("/v1/model", s.handleModel)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModel(c *echo.Context) error {
	opts := s.pre.Options()
	return c.JSON(http.StatusOK, ModelResponse{
		Name:        s.modelName,
		InputKey:    s.inputKey,
		InputWidth:  opts.Width,
		InputHeight: opts.Height,
		Classes:     s.labels.Len(),
	})
}

func (s *Server) handleClassify(c *echo.Context) error {
	start := s.clock()
	requestID := newRequestID()

	imgBytes, err := readImageRequest(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_image", "failed to decode image")
	}

	input, err := s.pre.FromImage(img)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "preprocess_error", err.Error())
	}

	outputs, err := s.engine.Run(c.Request().Context(), map[string]*tensor.Dense{s.inputKey: input})
	if err != nil {
		s.log.Error("inference failed", "request_id", requestID, "error", err)
		return writeError(c, http.StatusInternalServerError, "inference_error", err.Error())
	}
	scores := firstOutput(outputs)
	if scores == nil {
		return writeError(c, http.StatusInternalServerError, "inference_error", "model produced no output")
	}

	preds := classify.TopK(scores.Data, s.labels, s.topK)
	if len(preds) == 0 {
		return writeError(c, http.StatusInternalServerError, "inference_error", "model produced empty scores")
	}
	elapsed := s.clock().Sub(start)
	s.log.Info("classified image",
		"request_id", requestID, "top", preds[0].Label, "elapsed", elapsed)

	return c.JSON(http.StatusOK, ClassifyResponse{
		ID:          requestID,
		Model:       s.modelName,
		Predictions: preds,
		ElapsedMS:   float64(elapsed.Microseconds()) / 1000,
	})
}

func firstOutput(outputs map[string]*tensor.Dense) *tensor.Dense {
	for _, t := range outputs {
		return t
	}
	return nil
}
