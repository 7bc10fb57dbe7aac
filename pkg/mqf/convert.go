package mqf

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quantaml/quanta/internal/logger"
	"github.com/quantaml/quanta/internal/onnx"
)

// Tensor is one payload staged for writing.
type Tensor struct {
	Name  string
	DType DType
	Shape []int64
	Data  []byte
}

// Bundle is everything that goes into one container.
type Bundle struct {
	Info    ModelInfo
	Tensors []Tensor
	Quant   []QuantRecord
	Labels  []string
}

// WriteModel lays out a bundle as an MQF file at path. At OptimizeAll every
// tensor payload starts on a 64-byte boundary and byte-identical payloads
// share storage; at OptimizeBasic payloads are packed back to back.
func WriteModel(path string, b *Bundle, level Level) error {
	if _, err := ParseLevel(string(level)); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		return err
	}

	infoData, err := EncodeModelInfo(&b.Info)
	if err != nil {
		return err
	}
	if _, err := w.WriteSection(SectionModelInfo, ModelInfoVersion, infoData); err != nil {
		return err
	}

	if len(b.Quant) > 0 {
		quantData, err := EncodeQuantInfo(b.Quant)
		if err != nil {
			return err
		}
		if _, err := w.WriteSection(SectionQuantInfo, QuantInfoVersion, quantData); err != nil {
			return err
		}
	}

	if len(b.Labels) > 0 {
		if _, err := w.WriteSection(SectionLabels, LabelsVersion, EncodeLabels(b.Labels)); err != nil {
			return err
		}
	}

	blob, relOffsets, deduped := packTensors(b.Tensors, level)
	if level == OptimizeAll {
		w.AddFlags(FlagTensorDataAligned64)
		if err := w.alignTo(tensorAlign); err != nil {
			return err
		}
	}
	if deduped {
		w.AddFlags(FlagDeduplicated)
	}
	base, err := w.WriteSection(SectionTensorData, 1, blob)
	if err != nil {
		return err
	}

	records := make([]TensorRecord, len(b.Tensors))
	for i, t := range b.Tensors {
		records[i] = TensorRecord{
			Name:   t.Name,
			DType:  t.DType,
			Shape:  t.Shape,
			Offset: base + relOffsets[i],
			Size:   uint64(len(t.Data)),
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	if _, err := w.WriteSection(SectionTensorIndex, TensorIndexVersion, EncodeTensorIndex(records)); err != nil {
		return err
	}

	return w.Finalize()
}

// packTensors builds the tensor data blob and the per-tensor offsets within
// it. Reports whether any payload was elided by dedup.
func packTensors(tensors []Tensor, level Level) (blob []byte, offsets []uint64, deduped bool) {
	offsets = make([]uint64, len(tensors))
	seen := make(map[[sha256.Size]byte]uint64)
	for i, t := range tensors {
		if level == OptimizeAll {
			sum := sha256.Sum256(t.Data)
			if off, ok := seen[sum]; ok {
				offsets[i] = off
				deduped = true
				continue
			}
			if mod := len(blob) % tensorAlign; mod != 0 {
				blob = append(blob, make([]byte, tensorAlign-mod)...)
			}
			seen[sum] = uint64(len(blob))
		}
		offsets[i] = uint64(len(blob))
		blob = append(blob, t.Data...)
	}
	return blob, offsets, deduped
}

// FromONNX stages a parsed ONNX model as a bundle, keeping initializer
// payloads in their source precision. Quant records and labels may be nil.
func FromONNX(m *onnx.Model, name string, quant []QuantRecord, labels []string) (*Bundle, error) {
	info := ModelInfo{
		Name:            name,
		Producer:        m.ProducerName,
		ProducerVersion: m.ProducerVersion,
		OpsetVersion:    m.OpsetVersion,
		Operators:       m.Operators,
		Quantized:       len(quant) > 0,
	}
	for _, vi := range m.Inputs {
		if _, isInit := m.Initializer(vi.Name); isInit {
			continue
		}
		info.Inputs = append(info.Inputs, TensorShape{Name: vi.Name, Dims: vi.Shape})
	}
	for _, vi := range m.Outputs {
		info.Outputs = append(info.Outputs, TensorShape{Name: vi.Name, Dims: vi.Shape})
	}

	tensors := make([]Tensor, 0, len(m.Initializers))
	for i := range m.Initializers {
		ini := &m.Initializers[i]
		dt, err := dtypeFromONNX(ini.DataType)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", ini.Name, err)
		}
		data := ini.Raw
		if data == nil {
			// Legacy float_data tensors carry no raw payload.
			floats, err := ini.Float32s()
			if err != nil {
				return nil, fmt.Errorf("tensor %q: %w", ini.Name, err)
			}
			data = float32sLE(floats)
		}
		tensors = append(tensors, Tensor{
			Name:  ini.Name,
			DType: dt,
			Shape: ini.Dims,
			Data:  data,
		})
	}

	return &Bundle{Info: info, Tensors: tensors, Quant: quant, Labels: labels}, nil
}

// Convert reads an ONNX model and writes the MQF rendition next to the
// requested output path.
func Convert(srcPath, dstPath string, level Level, labels []string) error {
	m, err := onnx.ParseFile(srcPath)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	b, err := FromONNX(m, name, nil, labels)
	if err != nil {
		return err
	}
	return WriteModel(dstPath, b, level)
}

// SiblingPath maps a source model path to its container path: same directory,
// same base name, ".mqf" extension.
func SiblingPath(srcPath string) string {
	ext := filepath.Ext(srcPath)
	return srcPath[:len(srcPath)-len(ext)] + ".mqf"
}

// ConvertDir converts every .onnx file directly inside dir, writing each
// container beside its source. Returns the paths written.
func ConvertDir(dir string, level Level, labels []string, log logger.Logger) ([]string, error) {
	if _, err := ParseLevel(string(level)); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".onnx") {
			continue
		}
		src := filepath.Join(dir, e.Name())
		dst := SiblingPath(src)
		if err := Convert(src, dst, level, labels); err != nil {
			return written, fmt.Errorf("convert %s: %w", e.Name(), err)
		}
		log.Info("converted model", "source", src, "output", dst, "level", string(level))
		written = append(written, dst)
	}
	if len(written) == 0 {
		log.Warn("no .onnx files found", "dir", dir)
	}
	return written, nil
}

func float32sLE(vals []float32) []byte {
	out := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func dtypeFromONNX(dt int32) (DType, error) {
	switch dt {
	case onnx.DataTypeFloat:
		return DTypeF32, nil
	case onnx.DataTypeInt8:
		return DTypeI8, nil
	case onnx.DataTypeUint8:
		return DTypeU8, nil
	case onnx.DataTypeInt32:
		return DTypeI32, nil
	case onnx.DataTypeInt64:
		return DTypeI64, nil
	default:
		return DTypeUnknown, fmt.Errorf("unsupported element type %d", dt)
	}
}
