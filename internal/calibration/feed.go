// Package calibration streams preprocessed image tensors to the static
// quantizer, one batch per call, until the folder is exhausted.
package calibration

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quantaml/quanta/internal/logger"
	"github.com/quantaml/quanta/internal/preprocess"
	"github.com/quantaml/quanta/internal/tensor"
)

// DefaultInputKey is used when the model's input name is not configured.
const DefaultInputKey = "input"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// Feed iterates a folder of calibration images. The batch set is materialized
// on the first Next call and never refreshed; a Feed is not restartable.
// Files are enumerated in lexicographic filename order so calibration ranges
// are reproducible across platforms.
type Feed struct {
	dir      string
	inputKey string
	pre      *preprocess.Preprocessor
	log      logger.Logger

	loaded  bool
	pos     int
	batches []*tensor.Dense
}

// Option configures a Feed.
type Option func(*Feed)

// WithInputKey sets the tensor name batches are keyed under.
func WithInputKey(name string) Option {
	return func(f *Feed) {
		if name != "" {
			f.inputKey = name
		}
	}
}

// WithLogger attaches a logger for load-time diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(f *Feed) { f.log = log }
}

// New creates a feed over dir. Nothing is read until the first Next call.
func New(dir string, pre *preprocess.Preprocessor, opts ...Option) *Feed {
	f := &Feed{
		dir:      dir,
		inputKey: DefaultInputKey,
		pre:      pre,
		log:      logger.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Next returns the next calibration batch keyed by the input name, or a nil
// map once the folder is exhausted. Exhaustion is idempotent: every later
// call keeps returning nil. A missing or empty folder yields nil on the
// first call and is not an error; a file that fails to decode is.
func (f *Feed) Next() (map[string]*tensor.Dense, error) {
	if !f.loaded {
		if err := f.load(); err != nil {
			return nil, err
		}
	}
	if f.pos >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.pos]
	f.pos++
	return map[string]*tensor.Dense{f.inputKey: batch}, nil
}

// Count reports the number of materialized batches. Zero before loading.
func (f *Feed) Count() int { return len(f.batches) }

// InputKey returns the name batches are keyed under.
func (f *Feed) InputKey() string { return f.inputKey }

func (f *Feed) load() error {
	f.loaded = true

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		// Missing folder means an empty batch set, not a fatal condition.
		f.log.Warn("calibration folder unreadable, feed is empty", "dir", f.dir, "error", err)
		return nil
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	f.batches = make([]*tensor.Dense, 0, len(files))
	for _, name := range files {
		t, err := f.pre.FromFile(filepath.Join(f.dir, name))
		if err != nil {
			return err
		}
		f.batches = append(f.batches, t)
	}
	f.log.Debug("calibration batch set materialized", "dir", f.dir, "batches", len(f.batches))
	return nil
}
