package mqf

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ModelInfoVersion is the on-disk version of the model info payload.
const ModelInfoVersion uint32 = 1

// TensorShape describes one named graph input or output. Dynamic dimensions
// are stored as -1.
type TensorShape struct {
	Name string  `json:"name"`
	Dims []int64 `json:"dims"`
}

// ModelInfo is the JSON metadata section of a container.
type ModelInfo struct {
	Name            string        `json:"name"`
	Producer        string        `json:"producer,omitempty"`
	ProducerVersion string        `json:"producer_version,omitempty"`
	OpsetVersion    int64         `json:"opset_version,omitempty"`
	Inputs          []TensorShape `json:"inputs"`
	Outputs         []TensorShape `json:"outputs"`
	Operators       []string      `json:"operators,omitempty"`
	Quantized       bool          `json:"quantized"`
}

// EncodeModelInfo serializes the metadata section.
func EncodeModelInfo(info *ModelInfo) ([]byte, error) {
	out, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode model info: %w", err)
	}
	return out, nil
}

// ParseModelInfo decodes the metadata section.
func ParseModelInfo(sec []byte) (*ModelInfo, error) {
	var info ModelInfo
	if err := json.Unmarshal(sec, &info); err != nil {
		return nil, fmt.Errorf("%w: model info: %v", ErrCorruptFile, err)
	}
	return &info, nil
}
