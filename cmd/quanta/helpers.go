package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/quantaml/quanta/internal/labels"
	"github.com/quantaml/quanta/internal/preprocess"
)

func buildPreprocessor() (*preprocess.Preprocessor, error) {
	opts := preprocess.DefaultOptions()
	opts.Width = int(inputSize)
	opts.Height = int(inputSize)
	pre, err := preprocess.New(opts)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: %w", err)
	}
	return pre, nil
}

// loadLabels resolves the --labels value: an http(s) URL is fetched once, any
// other value is read as a local file, and an empty value reports class
// indices as placeholder names.
func loadLabels(ctx context.Context) (*labels.Set, error) {
	if labelsPath == "" {
		return labels.FromSlice(nil), nil
	}
	if strings.HasPrefix(labelsPath, "http://") || strings.HasPrefix(labelsPath, "https://") {
		set, err := labels.Fetch(ctx, labelsPath)
		if err != nil {
			return nil, fmt.Errorf("fetch labels: %w", err)
		}
		return set, nil
	}
	set, err := labels.Load(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	return set, nil
}
