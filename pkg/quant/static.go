package quant

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/quantaml/quanta/internal/calibration"
	"github.com/quantaml/quanta/internal/logger"
	"github.com/quantaml/quanta/internal/onnx"
	"github.com/quantaml/quanta/internal/runner"
	"github.com/quantaml/quanta/internal/tensor"
	"github.com/quantaml/quanta/pkg/mqf"
)

// Config drives one static quantization run.
type Config struct {
	Model *onnx.Model
	Feed  *calibration.Feed

	// Runner evaluates the model on calibration batches so output
	// activations can be observed. Optional: without it only the graph
	// inputs are calibrated.
	Runner runner.Runner

	// OutputPath is where the quantized container is written.
	OutputPath string

	// ModelName names the container; Labels are stored alongside it when
	// present.
	ModelName string
	Labels    []string

	Level  mqf.Level
	Logger logger.Logger
}

// Report summarizes a completed run.
type Report struct {
	BatchesConsumed  int
	WeightTensors    int
	ActivationRanges []mqf.QuantRecord
	OutputPath       string
}

// Static runs post-training static quantization: it drains the calibration
// feed to observe activation ranges, quantizes every float32 weight tensor
// to symmetric int8, and writes the result as an MQF container.
func Static(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Model == nil {
		return nil, errors.New("quant: nil model")
	}
	if cfg.Feed == nil {
		return nil, errors.New("quant: nil calibration feed")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	observers := make(map[string]*MinMaxObserver)
	observe := func(batch map[string]*tensor.Dense) {
		for name, t := range batch {
			o := observers[name]
			if o == nil {
				o = &MinMaxObserver{}
				observers[name] = o
			}
			o.Observe(t.Data)
		}
	}

	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := cfg.Feed.Next()
		if err != nil {
			return nil, fmt.Errorf("calibration batch %d: %w", batches, err)
		}
		if batch == nil {
			break
		}
		observe(batch)
		if cfg.Runner != nil {
			outputs, err := cfg.Runner.Run(ctx, batch)
			if err != nil {
				return nil, fmt.Errorf("calibration batch %d: %w", batches, err)
			}
			observe(outputs)
		}
		batches++
	}
	log.Info("calibration complete", "batches", batches, "observed_tensors", len(observers))

	records := make([]mqf.QuantRecord, 0, len(observers))
	for _, name := range sortedKeys(observers) {
		p := observers[name].Params()
		records = append(records, mqf.QuantRecord{
			Name:      name,
			Domain:    mqf.DomainActivations,
			Scale:     p.Scale,
			ZeroPoint: p.ZeroPoint,
			Min:       p.Min,
			Max:       p.Max,
		})
	}

	bundle, err := mqf.FromONNX(cfg.Model, cfg.ModelName, nil, cfg.Labels)
	if err != nil {
		return nil, err
	}

	weights := 0
	for i := range bundle.Tensors {
		t := &bundle.Tensors[i]
		if t.DType != mqf.DTypeF32 {
			continue
		}
		ini, ok := cfg.Model.Initializer(t.Name)
		if !ok {
			return nil, fmt.Errorf("quant: tensor %q missing from model", t.Name)
		}
		floats, err := ini.Float32s()
		if err != nil {
			return nil, fmt.Errorf("quant: tensor %q: %w", t.Name, err)
		}
		p := SymmetricInt8(floats)
		t.DType = mqf.DTypeI8
		t.Data = int8Bytes(QuantizeInt8(floats, p))
		records = append(records, mqf.QuantRecord{
			Name:      t.Name,
			Domain:    mqf.DomainWeights,
			Scale:     p.Scale,
			ZeroPoint: p.ZeroPoint,
			Min:       p.Min,
			Max:       p.Max,
		})
		weights++
	}
	bundle.Quant = records
	bundle.Info.Quantized = true

	if err := mqf.WriteModel(cfg.OutputPath, bundle, cfg.Level); err != nil {
		return nil, err
	}
	log.Info("quantized container written",
		"path", cfg.OutputPath, "weight_tensors", weights, "level", string(cfg.Level))

	activations := records[:len(records)-weights]
	return &Report{
		BatchesConsumed:  batches,
		WeightTensors:    weights,
		ActivationRanges: activations,
		OutputPath:       cfg.OutputPath,
	}, nil
}

// SimulatedWeights quantizes and dequantizes every float32 weight tensor,
// returning the replacement payloads for splicing into an evaluation copy of
// the model. The result models the precision an int8 runtime would see while
// remaining runnable by a float32 engine.
func SimulatedWeights(m *onnx.Model) (map[string][]float32, error) {
	out := make(map[string][]float32)
	for i := range m.Initializers {
		ini := &m.Initializers[i]
		if ini.DataType != onnx.DataTypeFloat {
			continue
		}
		floats, err := ini.Float32s()
		if err != nil {
			return nil, fmt.Errorf("quant: tensor %q: %w", ini.Name, err)
		}
		rt, _ := RoundTrip(floats)
		out[ini.Name] = rt
	}
	return out, nil
}

func int8Bytes(qs []int8) []byte {
	out := make([]byte, len(qs))
	for i, q := range qs {
		out[i] = byte(q)
	}
	return out
}

func sortedKeys(m map[string]*MinMaxObserver) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
